package gate

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/models"
)

// TimestampField is the Logstash event time field the lookback clause uses.
const TimestampField = "@timestamp"

// CountRequest is a fully built count query.
type CountRequest struct {
	// URL carries credentials; never log it. Use Redacted.
	URL       string
	Redacted  string
	SearchURL string // _search variant for operators, redacted
	Query     string // q before encoding
	Indexes   string
}

// BuildCountURL composes
//
//	scheme://[user:password@]host/{indexes}/_count?pretty=true&q={encoded}
//
// where q is the user query AND-ed with a lower bound on @timestamp in epoch
// milliseconds, form-encoded as a single value.
func BuildCountURL(conn config.ConnectionConfig, query string, since time.Time, indexes string) (CountRequest, error) {
	if !utf8.ValidString(query) {
		return CountRequest{}, &models.EncodingError{Err: errors.New("query is not valid UTF-8")}
	}
	q := query + " AND " + TimestampField + ":>=" + strconv.FormatInt(since.UnixMilli(), 10)

	var creds string
	if conn.HasCredentials() {
		creds = url.UserPassword(conn.User, conn.Password).String() + "@"
	}

	raw := conn.Scheme() + "://" + creds + conn.Host + "/" + indexes + "/_count?pretty=true&q=" + url.QueryEscape(q)

	parsed, err := url.Parse(raw)
	if err != nil {
		return CountRequest{}, &models.ConfigurationError{Field: "connection.host", Err: err}
	}
	if parsed.Host == "" {
		return CountRequest{}, &models.ConfigurationError{Field: "connection.host", Err: models.ErrHostRequired}
	}

	redacted := parsed.Redacted()
	return CountRequest{
		URL:       raw,
		Redacted:  redacted,
		SearchURL: strings.Replace(redacted, "/_count?", "/_search?", 1),
		Query:     q,
		Indexes:   indexes,
	}, nil
}
