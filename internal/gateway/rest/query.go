package rest

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	tablePrefix   = "/rest/v1/"
	rpcPrefix     = "/rest/v1/rpc/"
	authPrefix    = "/auth/v1/"
	storagePrefix = "/storage/v1/object/"

	singleObject = "application/vnd.pgrst.object+json"
)

// query builds PostgREST filter parameters for one table.
type query struct {
	table  string
	params url.Values
}

func from(table string) *query {
	return &query{table: table, params: url.Values{}}
}

func (q *query) columns(cols string) *query {
	q.params.Set("select", cols)
	return q
}

func (q *query) eq(column string, value interface{}) *query {
	q.params.Add(column, "eq."+formatValue(value))
	return q
}

func (q *query) gte(column string, value interface{}) *query {
	q.params.Add(column, "gte."+formatValue(value))
	return q
}

func (q *query) order(column string, ascending bool) *query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

func (q *query) limit(n int) *query {
	if n > 0 {
		q.params.Set("limit", strconv.Itoa(n))
	}
	return q
}

func (q *query) onConflict(columns string) *query {
	q.params.Set("on_conflict", columns)
	return q
}

func (q *query) path() string {
	return tablePrefix + q.table
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case uuid.UUID:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
