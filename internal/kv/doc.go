// Package kv implements the key=value text codec spoken by the module's
// shell scripts.
//
// Backend scripts print one "key=value" pair per line and accept edits as
// ordered positional "key=value" arguments. Values are plain strings; the
// codec never interprets them, so "", "0" and "disabled" stay distinct.
//
// Known limitation: values containing '=' survive Parse (only the first '='
// splits) but values containing a newline cannot be represented. Callers
// must not rely on round-trips for such values.
package kv
