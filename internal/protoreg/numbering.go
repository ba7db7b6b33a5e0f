package protoreg

import (
	"hash/fnv"
	"slices"
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	maxTag        = 31767
	reservedFirst = 19000
	reservedLast  = 19999
)

// allocateFieldNumbers numbers the fields of one message from their names,
// so a field keeps its tag when other fields come and go.
func allocateFieldNumbers(fields []*protobuilder.FieldBuilder) {
	names := make([]string, len(fields))
	for i, fb := range fields {
		names[i] = string(fb.Name())
	}
	for i, n := range tagNumbers(names) {
		fields[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

// tagNumbers hashes each name into 1..maxTag, outside the range protobuf
// reserves, and probes upward past taken tags. Names claim tags in sorted
// order, which makes the result independent of the input order.
func tagNumbers(names []string) []int {
	if len(names) == 0 {
		return nil
	}
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return strings.Compare(names[a], names[b]) })

	out := make([]int, len(names))
	taken := make(map[int]bool, len(names))
	for _, i := range order {
		h := fnv.New32a()
		h.Write([]byte(names[i]))
		tag := int(h.Sum32()%maxTag) + 1
		for probes := 0; taken[tag] || (tag >= reservedFirst && tag <= reservedLast); probes++ {
			if probes > maxTag {
				panic("protoreg: tag space exhausted")
			}
			tag = tag%maxTag + 1
		}
		taken[tag] = true
		out[i] = tag
	}
	return out
}

func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	return protobuilder.Comments{LeadingComment: " " + strings.ReplaceAll(desc, "\n", "\n ") + "\n"}
}
