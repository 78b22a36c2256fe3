// Package converter is the client for the external SQL service that checks
// a query against a schema and turns it into a relational-algebra
// derivation tree.
//
// The service exposes two JSON endpoints, both taking an
// [schema.ExportedSchema]:
//
//   - POST <base>/sintaxis: syntax and semantic check
//   - POST <base>/convert: the derivation tree as a [derivation.Payload]
//
// Rejections carry a list of messages shaped {tipo, tipoDetallado,
// contenido}; the client flattens each to "tipoDetallado: contenido".
//
// [schema.ExportedSchema]: github.com/matzehuels/sqltree/pkg/schema.ExportedSchema
// [derivation.Payload]: github.com/matzehuels/sqltree/pkg/derivation.Payload
package converter
