package logger

import "strings"

// Config resolves a logging Level for a namespace.
type Config interface {
	LevelForNamespace(namespace string) Level
}

// ConfigMap maps namespaces to levels. The empty key configures the root
// logger and acts as the fallback for unlisted namespaces.
type ConfigMap map[string]Level

// NewConfigFromString parses a CSV config string such as
// "server:debug,udpmux:trace,error". Entries without a level default to
// info. Suitable for reading configuration from an environment variable.
func NewConfigFromString(str string) Config {
	if str == "" {
		return nil
	}

	entries := strings.Split(str, ",")
	ret := make(ConfigMap, len(entries))

	for _, entry := range entries {
		level := LevelInfo
		namespace := entry

		if index := strings.LastIndex(entry, ":"); index > -1 {
			if parsed, ok := LevelFromString(entry[index+1:]); ok {
				level = parsed
				namespace = entry[:index]
			}
		}

		ret[namespace] = level
	}

	return ret
}

// LevelForNamespace implements Config. Exact matches win, then the last
// namespace segment, then the root entry.
func (c ConfigMap) LevelForNamespace(namespace string) Level {
	if level, ok := c[namespace]; ok {
		return level
	}

	if index := strings.LastIndex(namespace, ":"); index > -1 {
		if level, ok := c[namespace[index+1:]]; ok {
			return level
		}
	}

	return c[""]
}
