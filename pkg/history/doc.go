// Package history stores the schemas a user has validated, plus a few UI
// preference flags, as one JSON document in a key/value [Backend].
//
// The document is created once by [Open] and then read and rewritten
// whole on every change:
//
//	{
//	  "schemas": {"<sha256>": "<schema JSON>", ...},
//	  "flags":   {"openSchemaInstructions": true, "openCodeInstructions": true}
//	}
//
// Schemas are keyed by their content hash ([schema.ExportedSchema.ID]), so
// adding the same schema twice stores it once and the second [History.Add]
// reports added=false.
//
// # Backends
//
//   - [CacheBackend]: any [cache.Cache] (file, memory or Redis), no expiry
//   - [SQLiteBackend]: a single-table SQLite database (modernc.org/sqlite)
//   - [MongoBackend]: one document per key in a MongoDB collection
//
// [schema.ExportedSchema.ID]: github.com/matzehuels/sqltree/pkg/schema.ExportedSchema.ID
// [cache.Cache]: github.com/matzehuels/sqltree/pkg/cache.Cache
package history
