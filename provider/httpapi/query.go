package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-hosted"
)

type queryOp int

const (
	opSelect queryOp = iota
	opInsert
	opUpdate
	opDelete
)

type filter struct {
	column string
	value  string
}

// query implements hosted.QueryBuilder over the REST table surface. Builders
// are single-use; misuse (two verbs on one builder) surfaces as a sticky
// error from Do rather than a panic.
type query struct {
	client  *Client
	table   string
	op      queryOp
	hasOp   bool
	columns []string
	record  any
	fields  map[string]any
	filters []filter
	order   string
	single  bool
	err     error
}

var _ hosted.QueryBuilder = (*query)(nil)

func (q *query) Select(columns ...string) hosted.QueryBuilder {
	q.setOp(opSelect)
	q.columns = columns
	return q
}

func (q *query) Insert(record any) hosted.QueryBuilder {
	q.setOp(opInsert)
	q.record = record
	return q
}

func (q *query) Update(fields map[string]any) hosted.QueryBuilder {
	q.setOp(opUpdate)
	q.fields = fields
	return q
}

func (q *query) Delete() hosted.QueryBuilder {
	q.setOp(opDelete)
	return q
}

func (q *query) Eq(column string, value any) hosted.QueryBuilder {
	q.filters = append(q.filters, filter{column: column, value: fmt.Sprintf("%v", value)})
	return q
}

func (q *query) Order(column string, desc bool) hosted.QueryBuilder {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.order = column + "." + dir
	return q
}

func (q *query) Single() hosted.QueryBuilder {
	q.single = true
	return q
}

func (q *query) setOp(op queryOp) {
	if q.hasOp && q.op != op && q.err == nil {
		q.err = goerrors.New("query already has a verb", goerrors.CategoryBadInput)
	}
	q.op = op
	q.hasOp = true
}

func (q *query) Do(ctx context.Context, dest any) error {
	if q.err != nil {
		return q.err
	}
	if strings.TrimSpace(q.table) == "" {
		return goerrors.New("query table is required", goerrors.CategoryBadInput)
	}

	req, err := q.buildRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := q.client.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "hosted table request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return q.client.serviceError(resp.StatusCode, raw)
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode rows")
	}
	return nil
}

func (q *query) buildRequest(ctx context.Context) (*http.Request, error) {
	endpoint := q.client.restURL + "/" + url.PathEscape(q.table)

	params := url.Values{}
	if q.op == opSelect || q.single || q.op == opInsert || q.op == opUpdate {
		cols := "*"
		if len(q.columns) > 0 {
			cols = strings.Join(q.columns, ",")
		}
		params.Set("select", cols)
	}
	for _, f := range q.filters {
		params.Set(f.column, "eq."+f.value)
	}
	if q.order != "" {
		params.Set("order", q.order)
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var method string
	var body io.Reader
	switch q.op {
	case opSelect:
		method = http.MethodGet
	case opInsert:
		method = http.MethodPost
		raw, err := json.Marshal(q.record)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode record")
		}
		body = bytes.NewReader(raw)
	case opUpdate:
		method = http.MethodPatch
		raw, err := json.Marshal(q.fields)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode fields")
		}
		body = bytes.NewReader(raw)
	case opDelete:
		method = http.MethodDelete
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create request")
	}

	req.Header.Set("apikey", q.client.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+q.bearer(ctx))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.op == opInsert || q.op == opUpdate {
		req.Header.Set("Prefer", "return=representation")
	}
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}

	return req, nil
}

// bearer prefers the signed-in user's access token so row-level security
// applies; the anon key is the fallback.
func (q *query) bearer(ctx context.Context) string {
	session, err := q.client.tokens.Load(ctx)
	if err != nil || session == nil || session.AccessToken == "" {
		return q.client.config.AnonKey
	}
	if session.Expired(time.Now()) {
		if refreshed, err := q.client.refresh(ctx, session.RefreshToken); err == nil && refreshed != nil {
			return refreshed.AccessToken
		}
		return q.client.config.AnonKey
	}
	return session.AccessToken
}
