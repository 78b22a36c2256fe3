// Package integrations holds the HTTP plumbing for talking to external
// services. The only service today is the SQL validation and conversion
// backend, whose client lives in [converter].
//
// [Client] posts JSON, retries transport failures and 5xx answers through
// [httputil.Policy], caches decoded results in a [cache.Cache] and reports
// every request to the [observability] HTTP hooks.
//
// [converter]: github.com/matzehuels/sqltree/pkg/integrations/converter
// [httputil.Policy]: github.com/matzehuels/sqltree/pkg/httputil.Policy
// [cache.Cache]: github.com/matzehuels/sqltree/pkg/cache.Cache
// [observability]: github.com/matzehuels/sqltree/pkg/observability
package integrations
