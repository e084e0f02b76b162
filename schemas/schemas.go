// Package schemas embeds the JSON Schemas describing the crawler's output.
package schemas

import _ "embed"

// MemberRecord is the JSON Schema of one output record.
//
//go:embed member_record.schema.json
var MemberRecord string
