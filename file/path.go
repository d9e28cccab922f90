// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package file

import (
	"fmt"
	"path/filepath"
	"strings"
)

const urlSeparator = '/'

// schemeLen returns the length of "hdfs" in "hdfs://namenode/dir". It
// returns 0 for a local path.
func schemeLen(path string) (int, error) {
	// Per RFC3986, a scheme is ASCII only.
	for i := 0; i < len(path); i++ {
		ch := path[i]
		if ch == ':' {
			if !strings.HasPrefix(path[i:], "://") {
				return -1, fmt.Errorf("parsepath %s: a URL must start with 'scheme://'", path)
			}
			return i, nil
		}
		if !((ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || ch == '.' || ch == '+' || ch == '=') {
			return 0, nil
		}
	}
	return 0, nil
}

// ParsePath splits "path" into the scheme and the part after "scheme://".
// For example, ParsePath("hdfs://learn:9000/a/b") returns ("hdfs",
// "learn:9000/a/b", nil). For a local path it returns ("", path, nil).
func ParsePath(path string) (scheme, suffix string, err error) {
	n, err := schemeLen(path)
	if err != nil {
		return "", "", err
	}
	if n == 0 {
		return "", path, nil
	}
	return path[:n], path[n+3:], nil
}

// MustParsePath is similar to ParsePath, but crashes the process on error.
func MustParsePath(path string) (scheme, suffix string) {
	scheme, suffix, err := ParsePath(path)
	if err != nil {
		panic(err)
	}
	return scheme, suffix
}

// Base returns the last element of the path. It is filepath.Base for a local
// path. For a URL the separator is always '/', and a URL with an empty
// suffix ("hdfs://") is returned unchanged.
//
//	file.Base("hdfs://nn/user/a.txt") == "a.txt"
//	file.Base("hdfs://nn/user/") == "user"
func Base(path string) string {
	scheme, suffix, err := ParsePath(path)
	if scheme == "" || err != nil {
		return filepath.Base(path)
	}
	if suffix == "" {
		return path
	}
	return filepath.Base(suffix)
}

// Dir returns all but the last element of the path. It is filepath.Dir for
// a local path. For a URL the separator is always '/' and the scheme prefix
// is never removed; the result is not cleaned.
func Dir(path string) string {
	scheme, suffix, err := ParsePath(path)
	if scheme == "" || err != nil {
		return filepath.Dir(path)
	}
	prefix := len(scheme) + 3
	i := strings.LastIndexByte(suffix, urlSeparator)
	if i < 0 {
		return path[:prefix]
	}
	for i > 0 && suffix[i-1] == urlSeparator {
		i--
	}
	if i == 0 {
		// "hdfs:///a" is rooted at "hdfs:///".
		return path[:prefix+1]
	}
	return path[:prefix+i]
}

// Join joins path elements. It is filepath.Join when elems[0] is a local
// path. For a URL the separator is always '/', separators between elements
// are collapsed, and the elements are otherwise not cleaned, so
// Join("hdfs://nn", "user", "a.txt") == "hdfs://nn/user/a.txt" and
// Join("hdfs:///user/", "a.txt") == "hdfs:///user/a.txt".
func Join(elems ...string) string {
	if len(elems) == 0 {
		return ""
	}
	n, err := schemeLen(elems[0])
	if err != nil || n == 0 {
		return filepath.Join(elems...)
	}
	var b strings.Builder
	b.WriteString(elems[0][:n+3])
	head := elems[0][n+3:]
	if trimmed := strings.TrimRight(head, "/"); trimmed != "" {
		head = trimmed
	} else if head != "" {
		head = "/"
	}
	b.WriteString(head)
	for _, e := range elems[1:] {
		if e = strings.Trim(e, "/"); e == "" {
			continue
		}
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte(urlSeparator)
		}
		b.WriteString(e)
	}
	return b.String()
}

// IsAbs returns true if pathname is an absolute local path. URLs are
// always absolute.
func IsAbs(path string) bool {
	if scheme, _, err := ParsePath(path); scheme == "" || err != nil {
		return filepath.IsAbs(path)
	}
	return true
}
