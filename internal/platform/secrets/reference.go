package secrets

import (
	"fmt"
	"net/url"
	"strings"
)

const latestVersion = "latest"

// reference is a parsed secret://name?version=N&project=P.
type reference struct {
	canonical string
	name      string
	version   string
	project   string
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "sm://"); ok {
		raw = "secret://" + rest
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: parse %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: %q is not a secret:// reference", raw)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: %q names no secret", raw)
	}
	q := u.Query()
	return reference{
		canonical: "secret://" + name,
		name:      name,
		version:   strings.TrimSpace(q.Get("version")),
		project:   strings.TrimSpace(q.Get("project")),
	}, nil
}

// secretID maps the path-like name onto a Secret Manager id, which cannot contain "/".
func (r reference) secretID() string {
	return strings.ReplaceAll(r.name, "/", "_")
}

func (r reference) resource(project, version string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.secretID(), version)
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}
