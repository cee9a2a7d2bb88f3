package tarantool

import (
	"context"
	"errors"

	"github.com/mickamy/go-tarantool/internal/conn"
	"github.com/mickamy/go-tarantool/internal/iproto"
	"github.com/mickamy/go-tarantool/internal/wire"
)

// UpdateOp is a single update operation: assign, arithmetic, bitwise,
// splice, delete, or insert-before, applied to one field of a tuple.
type UpdateOp = iproto.UpdateOp

// NewUpdateOp builds an UpdateOp from a symbolic operator name ("=", "+",
// "&", "^", "|", "splice", "#", "!"); an unknown symbol fails before any
// bytes are emitted, matching the update builder's contract.
func NewUpdateOp(fieldNo uint32, symbol string, arg Value) (UpdateOp, error) {
	code, err := iproto.UpdateOpSymbol(symbol)
	if err != nil {
		return UpdateOp{}, newError(KindUsage, "update op", err)
	}
	return UpdateOp{FieldNo: fieldNo, Code: code, Arg: arg}, nil
}

// Handler is the single logical client exposed to callers: each method
// acquires an idle session from the pool, performs one protocol operation,
// returns the session to the pool, and propagates the parsed Response or a
// tarantool.Error.
type Handler struct {
	pool *Pool
	cfg  Config
}

// NewHandler wraps an already-running Pool.
func NewHandler(pool *Pool, cfg Config) *Handler {
	return &Handler{pool: pool, cfg: cfg}
}

// Ping sends an empty PING request and waits for the reply.
func (h *Handler) Ping(ctx context.Context) (*Response, error) {
	sess, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := sess.SendPing(iproto.Ping())
	if err != nil {
		h.pool.Release(sess)
		return nil, newError(KindConnection, "ping", err)
	}
	result := pending.RecvContext(ctx)
	h.pool.Release(sess)
	if result.Err != nil {
		return nil, classifyRecvError(result.Err)
	}
	return result.Response, nil
}

// Insert inserts args into space, failing the call (ServerError) if the
// key already exists.
func (h *Handler) Insert(ctx context.Context, space uint32, args Tuple) (*Response, error) {
	return h.insert(ctx, space, iproto.FlagAdd, nil, args)
}

// InsertRet inserts args into space and returns the inserted tuple cast
// per fieldTypes, failing if the key already exists.
func (h *Handler) InsertRet(ctx context.Context, space uint32, fieldTypes []FieldType, args Tuple) (*Response, error) {
	return h.insert(ctx, space, iproto.FlagAdd|iproto.FlagReturn, fieldTypes, args)
}

// Replace inserts args into space, overwriting any existing tuple with the
// same key (insert-or-replace).
func (h *Handler) Replace(ctx context.Context, space uint32, args Tuple) (*Response, error) {
	return h.insert(ctx, space, 0, nil, args)
}

// ReplaceRet is Replace, returning the resulting tuple.
func (h *Handler) ReplaceRet(ctx context.Context, space uint32, fieldTypes []FieldType, args Tuple) (*Response, error) {
	return h.insert(ctx, space, iproto.FlagReturn, fieldTypes, args)
}

// ReplaceReq replaces an existing tuple, failing (ServerError) if the key
// is absent.
func (h *Handler) ReplaceReq(ctx context.Context, space uint32, args Tuple) (*Response, error) {
	return h.insert(ctx, space, iproto.FlagReplace, nil, args)
}

// ReplaceReqRet is ReplaceReq, returning the resulting tuple.
func (h *Handler) ReplaceReqRet(ctx context.Context, space uint32, fieldTypes []FieldType, args Tuple) (*Response, error) {
	return h.insert(ctx, space, iproto.FlagReplace|iproto.FlagReturn, fieldTypes, args)
}

func (h *Handler) insert(ctx context.Context, space, flags uint32, fieldTypes []FieldType, args Tuple) (*Response, error) {
	return h.do(ctx, func(id uint32) ([]byte, error) {
		return iproto.Insert(id, space, flags, args)
	}, fieldTypes)
}

// Select performs a single-key lookup with offset=0, limit=2^32-1.
func (h *Handler) Select(ctx context.Context, space, index uint32, fieldTypes []FieldType, key Tuple) (*Response, error) {
	return h.SelectExt(ctx, space, index, 0, 1<<32-1, fieldTypes, key)
}

// SelectExt performs a single-key lookup with an explicit offset and limit.
func (h *Handler) SelectExt(ctx context.Context, space, index, offset, limit uint32, fieldTypes []FieldType, key Tuple) (*Response, error) {
	return h.do(ctx, func(id uint32) ([]byte, error) {
		return iproto.Select(id, space, index, offset, limit, key)
	}, fieldTypes)
}

// Update applies ops to the tuple identified by key, returning the
// affected count.
func (h *Handler) Update(ctx context.Context, space uint32, key Tuple, ops []UpdateOp) (*Response, error) {
	return h.update(ctx, space, 0, nil, key, ops)
}

// UpdateRet is Update, returning the updated tuple cast per fieldTypes.
func (h *Handler) UpdateRet(ctx context.Context, space uint32, fieldTypes []FieldType, key Tuple, ops []UpdateOp) (*Response, error) {
	return h.update(ctx, space, iproto.FlagReturn, fieldTypes, key, ops)
}

func (h *Handler) update(ctx context.Context, space, flags uint32, fieldTypes []FieldType, key Tuple, ops []UpdateOp) (*Response, error) {
	return h.do(ctx, func(id uint32) ([]byte, error) {
		return iproto.Update(id, space, flags, key, ops)
	}, fieldTypes)
}

// Delete removes the tuple identified by key, returning the affected count.
func (h *Handler) Delete(ctx context.Context, space uint32, key Tuple) (*Response, error) {
	return h.delete(ctx, space, 0, nil, key)
}

// DeleteRet is Delete, returning the deleted tuple cast per fieldTypes.
func (h *Handler) DeleteRet(ctx context.Context, space uint32, fieldTypes []FieldType, key Tuple) (*Response, error) {
	return h.delete(ctx, space, iproto.FlagReturn, fieldTypes, key)
}

func (h *Handler) delete(ctx context.Context, space, flags uint32, fieldTypes []FieldType, key Tuple) (*Response, error) {
	return h.do(ctx, func(id uint32) ([]byte, error) {
		return iproto.Delete(id, space, flags, key)
	}, fieldTypes)
}

// Call invokes a server-side stored procedure, returning its result tuples
// cast per fieldTypes.
func (h *Handler) Call(ctx context.Context, procName string, fieldTypes []FieldType, args Tuple) (*Response, error) {
	return h.do(ctx, func(id uint32) ([]byte, error) {
		return iproto.Call(id, 0, procName, args)
	}, fieldTypes)
}

// Disconnect gracefully drains the pool: no further reconnects, every
// socket closed, resolving once every session has unregistered.
func (h *Handler) Disconnect(ctx context.Context) error {
	return h.pool.Disconnect(ctx)
}

// Watch subscribes to the pool's diagnostic event stream.
func (h *Handler) Watch() <-chan Event {
	return h.pool.Watch()
}

// String renders the pool's connection summary.
func (h *Handler) String() string {
	return h.pool.String()
}

// do is the acquire → write → await → release → cast pipeline shared by
// every non-PING operation. A write failure still releases the session
// before returning, per the pool's contract.
func (h *Handler) do(ctx context.Context, build func(id uint32) ([]byte, error), fieldTypes []FieldType) (*Response, error) {
	sess, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := sess.Send(build)
	if err != nil {
		h.pool.Release(sess)
		return nil, classifyBuildError(err)
	}

	result := pending.RecvContext(ctx)
	h.pool.Release(sess)
	if result.Err != nil {
		return nil, classifyRecvError(result.Err)
	}

	resp := result.Response
	if resp.Status == iproto.StatusError {
		return nil, newServerError(resp.AppCode, resp.ErrorMessage)
	}

	if len(fieldTypes) > 0 {
		for i, t := range resp.Tuples {
			recast, err := wire.RecastTuple(t, fieldTypes)
			if err != nil {
				return nil, newError(KindInvalidData, "cast response tuple", err)
			}
			resp.Tuples[i] = recast
		}
	}
	return resp, nil
}

// classifyBuildError distinguishes a request-serialization failure (a
// usage error: bad tuple, unknown update op) from a transport write
// failure (a connection error).
func classifyBuildError(err error) error {
	var buildErr *conn.BuildError
	if errors.As(err, &buildErr) {
		return newError(KindUsage, "build request", buildErr.Err)
	}
	return newError(KindConnection, "send", err)
}

// classifyRecvError wraps a Pending's result error, whether it came from
// the session actually going down (connection-lost, broadcast by the
// read loop's teardown) or from the caller's own ctx being cancelled or
// timing out while the request sat in flight — RecvContext cancels the
// in-flight entry in that case and returns ctx.Err(). Both are reported
// as KindConnection, matching the treatment Pool.Acquire already gives a
// cancelled wait for a session.
func classifyRecvError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindConnection, "context done while awaiting reply", err)
	}
	return newError(KindConnection, "connection lost while awaiting reply", err)
}
