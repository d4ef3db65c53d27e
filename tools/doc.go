// Package tools defines tool contracts and the registry the model can call into.
//
// Includes:
//   - ToolSpec: name, description, JSON input schema submitted to the model.
//   - Registry: name -> {spec, handler}; validates arguments against the schema.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Search tools: provider_websearch, websearch, provider_catch_all.
package tools
