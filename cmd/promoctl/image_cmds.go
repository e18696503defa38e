package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type imagesOpts struct {
	*rootOpts
}

func newImages(parent *rootOpts) *imagesOpts {
	return &imagesOpts{rootOpts: parent}
}

func (opts *imagesOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "images",
		Short:   "List the repositories in the registry.",
		Example: makeExample("promoctl images"),
		RunE:    opts.RunE,
	}
}

func (opts *imagesOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	repos, err := opts.Registry.List(context.Background())
	if err != nil {
		return err
	}
	return opts.printNames(cmd, "IMAGE", repos)
}

type tagsOpts struct {
	*rootOpts
}

func newTags(parent *rootOpts) *tagsOpts {
	return &tagsOpts{rootOpts: parent}
}

func (opts *tagsOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:     "tags <image>",
		Short:   "List the tags of a repository in the registry.",
		Example: makeExample("promoctl tags team/api"),
		RunE:    opts.RunE,
	}
}

func (opts *tagsOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgs(args, "image"); err != nil {
		return err
	}
	tags, err := opts.Registry.Tags(context.Background(), args[0])
	if err != nil {
		return err
	}
	return opts.printNames(cmd, "TAG", tags)
}

type imageOpts struct {
	*rootOpts
}

func newImage(parent *rootOpts) *imageOpts {
	return &imageOpts{rootOpts: parent}
}

func (opts *imageOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "image <image> [<tag>]",
		Short: "Show the digest of a tagged image; the tag defaults to latest.",
		Example: makeExample(
			"promoctl image team/api",
			"promoctl image team/api 1.4.2",
		),
		RunE: opts.RunE,
	}
}

func (opts *imageOpts) RunE(cmd *cobra.Command, args []string) error {
	if err := wantArgsBetween(args, 1, "image", "tag"); err != nil {
		return err
	}
	var tag string
	if len(args) == 2 {
		tag = args[1]
	}
	img, err := opts.Registry.Image(context.Background(), args[0], tag)
	if err != nil {
		return err
	}
	if opts.json() {
		return writeJSON(cmd.OutOrStdout(), img)
	}
	w := newTabwriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "IMAGE\tTAG\tDIGEST\n")
	fmt.Fprintf(w, "%s\t%s\t%s\n", img.Name, img.Tag, img.Digest)
	return w.Flush()
}
