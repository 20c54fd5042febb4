package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rubiojr/bindgen/contract"
	"github.com/rubiojr/bindgen/ffitype"
)

var markerColor = map[ffitype.Category]string{
	ffitype.CatDirect: "\033[32m",
	ffitype.CatString: "\033[33m",
	ffitype.CatBuffer: "\033[33m",
	ffitype.CatText:   "\033[36m",
	ffitype.CatHandle: "\033[35m",
}

func marker(c ffitype.Category, color bool) string {
	m := c.Marker()
	if !color || markerColor[c] == "" {
		return m
	}
	return markerColor[c] + m + "\033[0m"
}

func describe(t ffitype.Type) string {
	return fmt.Sprintf("%s [%s]", t, t.Category())
}

func printClassification(w io.Writer, file string, ifaces []contract.InterfaceDesc, structs []contract.StructDesc, color bool) {
	methods := 0
	for _, i := range ifaces {
		methods += len(i.Methods)
	}
	fmt.Fprintf(w, "File: %s\n", file)
	fmt.Fprintf(w, "Total: %d interfaces, %d methods, %d structs\n\n", len(ifaces), methods, len(structs))

	for _, iface := range ifaces {
		kind := "interface"
		if iface.Callback {
			kind = "callback"
		}
		fmt.Fprintf(w, "%s %s\n", kind, iface.Name)
		for _, m := range iface.Methods {
			args := make([]string, len(m.Args))
			for i, a := range m.Args {
				args[i] = a.Name + ": " + describe(a.Type)
			}
			fmt.Fprintf(w, "  %s %-20s (%s) → %s\n", marker(m.Return.Category(), color), m.Name, strings.Join(args, ", "), describe(m.Return))
		}
		fmt.Fprintln(w)
	}

	for _, s := range structs {
		fmt.Fprintf(w, "struct %s\n", s.Name)
		for i, f := range s.Fields {
			name := f.Name
			if name == "" {
				name = fmt.Sprint(i)
			}
			fmt.Fprintf(w, "  %s %-20s %s\n", marker(f.Type.Category(), color), name, describe(f.Type))
		}
		fmt.Fprintln(w)
	}
}
