package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnana997/movets/pkg/editor"
)

func newRefsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <path>",
		Short: "List the files that import a file or anything inside a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			refs := a.idx.Dependents(paths[0])
			if len(refs) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no references"))
				return nil
			}
			for _, ref := range refs {
				fmt.Fprintln(out, rel(a.root, ref))
			}
			return nil
		},
	}
}

func newSpecifiersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "specifiers <file>",
		Short: "List a file's module specifiers and what they resolve to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			file := paths[0]
			text, err := a.idx.Store().ReadText(file)
			if err != nil {
				return err
			}
			occurrences, err := a.idx.Extractor().ExtractSpecifiers(file, []byte(text))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			res := a.idx.Resolver()
			for _, occ := range occurrences {
				target := dimStyle.Render("unresolved")
				if abs, ok := res.Resolve(file, occ.Specifier); ok {
					target = rel(a.root, res.ProbeFile(abs))
				}
				fmt.Fprintf(out, "%d:%d\t%q\t%s\n",
					occ.Line, editor.UTF16Offset(text, occ.Start), occ.Specifier, target)
			}
			return nil
		},
	}
}
