package proposal

import (
	"bufio"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PatchMetadata is everything needed to replay a single mbox-formatted
// patch as a real commit. The format is one `git format-patch` message,
// not a full mailbox, so the parser is hand-rolled; no mbox library
// handles this narrow a shape.
type PatchMetadata struct {
	CommitID              string
	AuthorName            string
	AuthorEmail           string
	AuthorTimestamp       int64
	AuthorOffsetMinutes   int
	CommitterTimestamp    int64
	HasCommitterTimestamp bool
	Subject               string
	Body                  string
}

// ParseMboxPatch extracts PatchMetadata from the raw text of a single
// `git format-patch`-style message.
func ParseMboxPatch(content string) (*PatchMetadata, error) {
	if !strings.HasPrefix(content, "From ") {
		return nil, errors.New("patch does not start with 'From ' - not a valid mbox format")
	}

	commitID, fromLineFields, err := extractCommitID(content)
	if err != nil {
		return nil, err
	}
	name, email, err := extractAuthor(content)
	if err != nil {
		return nil, err
	}
	ts, offset, err := extractDate(content)
	if err != nil {
		return nil, err
	}
	committerTS, hasCommitterTS := extractCommitterDate(fromLineFields)
	subject, err := extractSubject(content)
	if err != nil {
		return nil, err
	}
	body := extractBody(content)

	return &PatchMetadata{
		CommitID:              commitID,
		AuthorName:            name,
		AuthorEmail:           email,
		AuthorTimestamp:       ts,
		AuthorOffsetMinutes:   offset,
		CommitterTimestamp:    committerTS,
		HasCommitterTimestamp: hasCommitterTS,
		Subject:               subject,
		Body:                  body,
	}, nil
}

func firstLine(content string) string {
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		return content[:idx]
	}
	return content
}

func extractCommitID(content string) (string, []string, error) {
	line := firstLine(content)
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", nil, errors.New("mbox 'From ' line does not contain a commit id")
	}
	return fields[1], fields, nil
}

func findHeader(content, prefix string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

func extractAuthor(content string) (name, email string, err error) {
	value, ok := findHeader(content, "From:")
	if !ok {
		return "", "", errors.New("patch does not contain a 'From:' header")
	}
	return parseFromHeaderValue(value)
}

func parseFromHeaderValue(value string) (name, email string, err error) {
	if start := strings.IndexByte(value, '<'); start >= 0 {
		if end := strings.IndexByte(value, '>'); end > start {
			email = value[start+1 : end]
			name = strings.Trim(strings.TrimSpace(value[:start]), `"`)
			return name, email, nil
		}
	}
	if strings.Contains(value, "@") {
		email = strings.TrimSpace(value)
		name = email
		if idx := strings.IndexByte(email, '@'); idx >= 0 {
			name = email[:idx]
		}
		return name, email, nil
	}
	return "", "", errors.Errorf("could not parse From header: %s", value)
}

// rfc2822Layout matches Go's closest equivalent of chrono's flexible
// RFC2822 parser: the common `git format-patch` Date: header shape.
const rfc2822Layout = "Mon, 2 Jan 2006 15:04:05 -0700"

func extractDate(content string) (timestamp int64, offsetMinutes int, err error) {
	value, ok := findHeader(content, "Date:")
	if !ok {
		return 0, 0, errors.New("patch does not contain a 'Date:' header")
	}
	t, err := time.Parse(rfc2822Layout, value)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to parse RFC2822 date: %s", value)
	}
	_, offsetSeconds := t.Zone()
	return t.Unix(), offsetSeconds / 60, nil
}

func extractCommitterDate(fromLineFields []string) (int64, bool) {
	if len(fromLineFields) >= 6 {
		dateStr := strings.Join(fromLineFields[3:6], " ")
		if t, err := time.Parse(rfc2822Layout, dateStr); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func extractSubject(content string) (string, error) {
	value, ok := findHeader(content, "Subject:")
	if !ok {
		return "", errors.New("patch does not contain a 'Subject:' header")
	}
	return cleanupSubject(value), nil
}

func cleanupSubject(subject string) string {
	result := subject
	for {
		trimmed := strings.TrimSpace(result)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "re:") {
			result = strings.TrimSpace(trimmed[3:])
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			result = strings.TrimSpace(trimmed[1:])
			continue
		}
		return trimmed
	}
}

// extractBody returns the commit message body: everything after the
// blank line separating headers from content, up to (but excluding)
// the diff/index/signature boundary markers `git format-patch` emits.
func extractBody(content string) string {
	lines := strings.Split(content, "\n")
	inBody := false
	var body []string
	for _, line := range lines {
		if !inBody {
			if line == "" {
				inBody = true
			}
			continue
		}
		if strings.HasPrefix(line, "diff --git ") ||
			strings.HasPrefix(line, "Index: ") ||
			strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "From ") {
			break
		}
		if strings.TrimSpace(line) == "---" {
			break
		}
		if strings.HasPrefix(line, "-- ") {
			break
		}
		body = append(body, line)
	}
	return strings.TrimRight(strings.Join(body, "\n"), "\n")
}
