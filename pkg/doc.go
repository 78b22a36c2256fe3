// Package pkg provides the core libraries for sqltree, a schema designer that
// turns a graph of tables and foreign keys plus a SQL query into a
// relational-algebra derivation tree.
//
// # Overview
//
// The pkg directory is organized into three areas:
//
//  1. Domain logic: [schema] (tables, fields, connections, export/import)
//     and [derivation] (derivation payloads and the tree layout engine)
//  2. Infrastructure: [cache], [history], [config], [errors],
//     [observability] and [httputil]
//  3. Orchestration and output: [integrations] (the conversion service
//     client), [pipeline] and [render]
//
// # Architecture
//
// The typical data flow through sqltree:
//
//	Schema graph (State)
//	         ↓
//	    [schema] package (export + validate names)
//	         ↓
//	    [integrations] converter (syntax check + derivation payload)
//	         ↓
//	    [derivation] package (tree layout)
//	         ↓
//	    [render] package (JSON/DOT/SVG/PNG/PDF)
//
// # Quick Start
//
//	s := schema.State{}
//	s, users, _ := s.AddTable(schema.UUIDs{})
//	s, orders, _ := s.AddTable(schema.UUIDs{})
//	// ... add fields, mark a primary key, then connect:
//	s, _ = s.Connect(schema.Connection{
//	    Source: schema.Endpoint{NodeID: orders, Handle: schema.FKHandle(fkField)},
//	    Target: schema.Endpoint{NodeID: users, Handle: schema.PKHandle(pkField)},
//	})
//
//	es, _ := schema.ExportValidated(s, "SELECT * FROM orders")
//	runner := pipeline.NewRunner(nil, nil, converter.NewClient("", nil, 0), nil, nil)
//	res, _ := runner.Execute(ctx, pipeline.Options{Schema: &es, Formats: []string{"svg"}})
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test -run Example ./pkg/...       # Examples only
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [schema]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/schema
// [derivation]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/derivation
// [cache]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/cache
// [history]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/history
// [config]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/observability
// [httputil]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/httputil
// [integrations]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/integrations
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/pipeline
// [render]: https://pkg.go.dev/github.com/matzehuels/sqltree/pkg/render
package pkg
