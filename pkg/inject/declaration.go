package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/livefield/internal/fsutil"
)

// DeclarationFile is the name the typings are written under.
const DeclarationFile = "global.d.ts"

type member struct {
	name     string
	typ      string
	children []member
}

const action = "() => void"

// contract lists the members of `$$inject` in declaration order.
var contract = []member{
	{name: "log", typ: "any"},
	{name: "notify", children: []member{
		{name: "info", typ: action},
		{name: "warn", typ: action},
		{name: "error", typ: action},
		{name: "success", typ: action},
		{name: "toast", typ: action},
	}},
	{name: "result", typ: "any"},
	{name: "properties", children: []member{
		{name: "authToken", typ: "string"},
		{name: "config", typ: "any"},
		{name: "document", children: []member{
			{name: "id", typ: "number"},
			{name: "hash", typ: "string"},
			{name: "databaseId", typ: "number"},
			{name: "archiveId", typ: "number"},
			{name: "fileId", typ: "string"},
		}},
	}},
	{name: "utility", children: []member{
		{name: "newGuid", typ: "() => string"},
	}},
	{name: "tableFields", typ: "any"},
	{name: "fields", typ: "any"},
	{name: "setPendingChanges", typ: action},
	{name: "save", typ: action},
}

// Declaration renders the ambient TypeScript declaration of `$$inject`.
func Declaration() string {
	var b strings.Builder
	b.WriteString("declare var $$inject: {\n")
	writeMembers(&b, contract, 1)
	b.WriteString("};\n")
	return b.String()
}

func writeMembers(b *strings.Builder, members []member, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, m := range members {
		if len(m.children) == 0 {
			fmt.Fprintf(b, "%s%s: %s;\n", indent, m.name, m.typ)
			continue
		}
		fmt.Fprintf(b, "%s%s: {\n", indent, m.name)
		writeMembers(b, m.children, depth+1)
		fmt.Fprintf(b, "%s};\n", indent)
	}
}

// WriteDeclaration writes the typings into dir and returns the file path.
func WriteDeclaration(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create typings directory: %w", err)
	}
	path := filepath.Join(dir, DeclarationFile)
	if err := fsutil.WriteFileAtomic(path, []byte(Declaration()), 0644); err != nil {
		return "", err
	}
	return path, nil
}
