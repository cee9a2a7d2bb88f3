package tarantool

import "github.com/mickamy/go-tarantool/internal/iproto"

// Response is a parsed reply: the split return code, rowcount, and the
// decoded tuple sequence (empty for affected-count-only replies). Its
// String method renders "ping ok", "N record(s) inserted/updated/
// deleted/affected", or a dump of the tuple slice, matching the reference
// client's summary representation.
type Response = iproto.Response
