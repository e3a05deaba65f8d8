package querier

import "net/http"

type formatterFn func(resp *ReadResponse, w http.ResponseWriter) error

var formatters = map[string]formatterFn{
	"json":   JsonFormatter,
	"ndjson": NDJsonFormatter,
}
