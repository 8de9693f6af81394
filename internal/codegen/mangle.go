// Package codegen walks a parsed idl.Protocol and emits Go source: one
// type declaration per Struct/Enum/Union/Typedef and one call stub per
// procedure. Every mangling function here is pure and total.
package codegen

import "strings"

const remotePrefix = "remote_"

// stripRemotePrefix removes a leading "remote_" (case-insensitively),
// preserving the casing of whatever follows.
func stripRemotePrefix(name string) string {
	if len(name) >= len(remotePrefix) && strings.EqualFold(name[:len(remotePrefix)], remotePrefix) {
		return name[len(remotePrefix):]
	}
	return name
}

// toUpperCamel converts a snake_case identifier to UpperCamelCase.
func toUpperCamel(snake string) string {
	parts := strings.Split(snake, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		if len(p) > 1 {
			b.WriteString(strings.ToLower(p[1:]))
		}
	}
	return b.String()
}

// MangleTypeName implements the "Type names" rule: strip the leading
// remote_ prefix, then UpperCamelCase the remainder.
func MangleTypeName(name string) string {
	return toUpperCamel(stripRemotePrefix(name))
}

// MangleFieldName strips the same prefix as MangleTypeName and keeps the
// same word sequence, UpperCamelCased: Go struct fields must be exported
// to be usable outside this package, so snake_case field names would not
// work the way they might in a generically-worded naming rule. go-libvirt's
// own generated structs follow this same convention - e.g. the wire
// header's Program, Version fields are exported UpperCamelCase, never
// snake_case.
func MangleFieldName(name string) string {
	return toUpperCamel(stripRemotePrefix(name))
}

// commonPrefixEndingAtUnderscore returns the longest common prefix of
// names, trimmed back to (and including) its last underscore, per the
// "Enum variants" rule's "longest common prefix that ends at a `_`."
func commonPrefixEndingAtUnderscore(names []string) string {
	if len(names) == 0 {
		return ""
	}
	prefix := names[0]
	for _, n := range names[1:] {
		prefix = commonPrefix(prefix, n)
		if prefix == "" {
			break
		}
	}
	idx := strings.LastIndex(prefix, "_")
	if idx < 0 {
		return ""
	}
	return prefix[:idx+1]
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// MangleEnumVariants implements the "Enum variants" rule across a whole
// enum at once, since the shared prefix can only be computed from the
// full variant set.
func MangleEnumVariants(variantNames []string) []string {
	prefix := commonPrefixEndingAtUnderscore(variantNames)
	out := make([]string, len(variantNames))
	for i, n := range variantNames {
		rest := n[len(prefix):]
		out[i] = toUpperCamel(strings.ToLower(rest))
	}
	return out
}

// MangleProcedureBase matches a procedure-enum variant name down to its
// snake_case base: lower-cased, with the first "proc_" infix removed.
// This is the base used both to look up the
// associated <base>_args/<base>_ret structs and, after MangleTypeName,
// to name the emitted call stub.
func MangleProcedureBase(variantName string) string {
	lower := strings.ToLower(variantName)
	idx := strings.Index(lower, "proc_")
	if idx < 0 {
		return lower
	}
	return lower[:idx] + lower[idx+len("proc_"):]
}

// MangleProcedureMethodName implements the "Procedure-method names" rule:
// MangleProcedureBase's result with the remote_ prefix stripped and
// UpperCamelCased, giving the exported Go function name for the stub.
func MangleProcedureMethodName(variantName string) string {
	return MangleTypeName(MangleProcedureBase(variantName))
}
