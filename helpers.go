package photobooth

import (
	"net/url"
	"path"
)

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	return u.String()
}

// contentURL is the path a stored image is served from.
func contentURL(name string) string {
	return "/content/" + url.PathEscape(name)
}

func downloadURL(name string) string {
	return "/download/" + url.PathEscape(name)
}
