package iris

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Response aggregates the outcome of every statement of a request. It is
// returned even when every statement failed.
type Response struct {
	Results []map[string]any `json:"results"`
	Errors  []map[string]any `json:"errors"`
}

func newResponse() *Response {
	return &Response{
		Results: []map[string]any{},
		Errors:  []map[string]any{},
	}
}

func (r *Response) addResult(directive string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}
	entry["directive"] = directive
	r.Results = append(r.Results, entry)
}

func (r *Response) addError(directive string, err *DirectiveError) {
	r.Errors = append(r.Errors, map[string]any{
		"directive": directive,
		"msg":       err.Message(),
		"data":      err.Data(),
	})
}

// DispatchJSON parses body and dispatches it. graph selects the target graph
// unless the body names one itself. Only an unparseable body is an error.
func (db *DB) DispatchJSON(ctx context.Context, graph string, body []byte) (*Response, error) {
	req, err := ParseRequest(body)
	if err != nil && db.relaxedJSON {
		if rreq, rerr := ParseRelaxedRequest(body, db.registry); rerr == nil {
			req, err = rreq, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return db.Dispatch(ctx, graph, req), nil
}

// Dispatch executes every statement of req in order, under the database-wide
// lock. Each argument object is executed independently: failures are
// collected into the response and never stop the remaining work.
func (db *DB) Dispatch(ctx context.Context, graph string, req *Request) *Response {
	requestID := uuid.NewString()
	logger := db.logger.With(slog.String("request_id", requestID))
	resp := newResponse()
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.RequestCount.Add(1)
	if db.closed {
		resp.addError(requestDirective, storageFailure(ErrClosed))
		return resp
	}

	name := req.Graph
	if name == "" {
		name = graph
	}
	if name == "" {
		name = DefaultGraph
	}

	db.journalRequest(ctx, logger, requestID, name, req)

	g, err := db.graph_locked(name)
	if err != nil {
		var de *DirectiveError
		if errors.Is(err, ErrFilesystem) {
			de = storageFailure(err)
		} else {
			de = invalidValue(graphKey, "%v", err)
		}
		resp.addError(graphKey, de)
		return resp
	}

	refs, err := ResolveReferences(req, db.refPolicy)
	if err != nil {
		resp.addError(refKey, invalidValue(refKey, "%v", err))
		refs = make(RefTable)
	}

	produced := make(map[string]bool)
	for _, stmt := range req.Statements {
		d := db.registry.Lookup(stmt.Key)
		if d == nil {
			if db.reportUnknown {
				resp.addError(stmt.Key, &DirectiveError{Kind: UnknownDirective, Key: stmt.Key})
			}
			continue
		}
		args, ok := stmt.Value.([]any)
		if !ok {
			resp.addError(stmt.Key, &DirectiveError{Kind: ExpectedArray})
			continue
		}
		for _, a := range args {
			db.StatementCount.Add(1)
			arg, ok := a.(map[string]any)
			if !ok {
				resp.addError(stmt.Key, &DirectiveError{Kind: ExpectedObject})
				continue
			}
			c := &Context{
				Context:   ctx,
				Graph:     g,
				Arg:       arg,
				Refs:      refs,
				RefPolicy: db.refPolicy,
				Logger:    logger,
				RequestID: requestID,
				produced:  produced,
			}
			res, err := safelyExec(d, c)
			if err != nil {
				de := asDirectiveError(err)
				if de.Kind == StorageFailure || de.Kind == InternalFailure {
					logger.LogAttrs(ctx, slog.LevelError, "iris: directive failed", slog.String("directive", stmt.Key), slog.String("graph", name), slog.Any("err", err))
				}
				resp.addError(stmt.Key, de)
				continue
			}
			resp.addResult(stmt.Key, res)
		}
	}

	if db.verbose {
		logger.LogAttrs(ctx, slog.LevelDebug, "iris: request", slog.String("graph", name), slog.Int("results", len(resp.Results)), slog.Int("errors", len(resp.Errors)), slog.Duration("elapsed", time.Since(start)))
	}
	return resp
}

const requestDirective = "request"

// JournalEntry is a request as recorded in the request journal.
type JournalEntry struct {
	RequestID string          `msgpack:"id"`
	Graph     string          `msgpack:"graph"`
	Time      time.Time       `msgpack:"time"`
	Body      json.RawMessage `msgpack:"body"`
}

// journalRequest records req before it runs. Journal failures are logged
// and do not affect the request.
func (db *DB) journalRequest(ctx context.Context, logger *slog.Logger, requestID, graph string, req *Request) {
	if db.journal == nil {
		return
	}
	body, err := json.Marshal(req)
	if err == nil {
		var data []byte
		data, err = msgpack.Marshal(&JournalEntry{
			RequestID: requestID,
			Graph:     graph,
			Time:      time.Now().UTC(),
			Body:      body,
		})
		if err == nil {
			err = db.journal.WriteRecord(0, data)
		}
		if err == nil {
			err = db.journal.Commit()
		}
	}
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "iris: failed to journal request", slog.Any("err", err))
	}
}

// JournalEntries returns every request recorded in the request journal.
func (db *DB) JournalEntries() ([]JournalEntry, error) {
	if db.journal == nil {
		return nil, nil
	}
	var entries []JournalEntry
	for rec, err := range db.journal.Records() {
		if err != nil {
			return entries, err
		}
		var e JournalEntry
		if err := msgpack.Unmarshal(rec.Data, &e); err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// MarshalJSON writes the request back as a JSON object, keeping statement
// order.
func (req *Request) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKV := func(k string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(vb)
		return nil
	}
	if req.Graph != "" {
		if err := writeKV(graphKey, req.Graph); err != nil {
			return nil, err
		}
	}
	for _, stmt := range req.Statements {
		if err := writeKV(stmt.Key, stmt.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
