// Command render_profile renders the form page for a stored record so the
// template can be checked in a browser without running the server.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"cv-builder/internal/form"
	"cv-builder/internal/model"
)

func main() {
	in := "draft.json"
	out := "form_preview.html"
	if len(os.Args) > 1 {
		in = os.Args[1]
	}
	if len(os.Args) > 2 {
		out = os.Args[2]
	}
	b, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read record: %v\n", err)
		os.Exit(2)
	}
	var rec model.FormRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal: %v\n", err)
		os.Exit(2)
	}
	if err := model.Validate(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	m := form.New()
	m.Replay(rec)

	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create out: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()
	if err := form.Render(f, form.BuildView(m)); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s\n", out)
}
