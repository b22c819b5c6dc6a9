package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// testConnectionCmd は認証情報とサーバーの疎通を確認する。
func testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify the API key and secret against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags()
			if err != nil {
				return err
			}
			body, err := client.call(cmd.Context(), http.MethodGet, "/test-connection", nil, nil)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				Timestamp     string `json:"timestamp"`
				SiteURL       string `json:"site_url"`
				ServerVersion string `json:"server_version"`
				PluginVersion string `json:"plugin_version"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (server %s, api %s) at %s\n",
				result.SiteURL, result.ServerVersion, result.PluginVersion, result.Timestamp)
			return nil
		},
	}
}

// postsCmd は投稿一覧を表示する。
func postsCmd() *cobra.Command {
	var (
		perPage  int
		offset   int
		postType string
		status   string
		category uint64
		search   string
	)
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags()
			if err != nil {
				return err
			}

			query := url.Values{}
			if cmd.Flags().Changed("per-page") {
				query.Set("per_page", strconv.Itoa(perPage))
			}
			if offset > 0 {
				query.Set("offset", strconv.Itoa(offset))
			}
			if postType != "" {
				query.Set("post_type", postType)
			}
			if status != "" {
				query.Set("status", status)
			}
			if category > 0 {
				query.Set("category", strconv.FormatUint(category, 10))
			}
			if search != "" {
				query.Set("search", search)
			}

			body, err := client.call(cmd.Context(), http.MethodGet, "/posts", query, nil)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				Posts []struct {
					ID     uint64 `json:"id"`
					Title  string `json:"title"`
					Status string `json:"status"`
					Date   string `json:"date"`
				} `json:"posts"`
				Total int `json:"total"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tDATE\tTITLE")
			for _, p := range result.Posts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Status, p.Date, p.Title)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d post(s)\n", result.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&perPage, "per-page", 10, "Number of posts (-1 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of posts to skip")
	cmd.Flags().StringVar(&postType, "post-type", "", "Post type (default: post)")
	cmd.Flags().StringVar(&status, "status", "", "Post status (default: publish)")
	cmd.Flags().Uint64Var(&category, "category", 0, "Category ID")
	cmd.Flags().StringVar(&search, "search", "", "Search title and content")
	return cmd
}

// postFlags は作成・更新コマンド共通の入力。
type postFlags struct {
	title            string
	content          string
	excerpt          string
	status           string
	postType         string
	category         string
	tags             string
	featuredImageURL string
	meta             map[string]string
	file             string
}

func (f *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Post title")
	cmd.Flags().StringVar(&f.content, "content", "", "Post content (HTML)")
	cmd.Flags().StringVar(&f.excerpt, "excerpt", "", "Post excerpt")
	cmd.Flags().StringVar(&f.status, "status", "", "Post status")
	cmd.Flags().StringVar(&f.postType, "type", "", "Post type")
	cmd.Flags().StringVar(&f.category, "category", "", "Category ID")
	cmd.Flags().StringVar(&f.tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&f.featuredImageURL, "featured-image-url", "", "Image URL to import as the featured image")
	cmd.Flags().StringToStringVar(&f.meta, "meta", nil, "Meta fields as key=value pairs")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read the JSON body from a file (- for stdin)")
}

// body は送信する本文を組み立てる。--file 指定時はその内容をそのまま送る。
func (f *postFlags) body(cmd *cobra.Command) ([]byte, error) {
	if f.file != "" {
		if f.file == "-" {
			return io.ReadAll(cmd.InOrStdin())
		}
		return os.ReadFile(f.file)
	}

	fields := map[string]any{}
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			fields[key] = value
		}
	}
	set("title", "title", f.title)
	set("content", "content", f.content)
	set("excerpt", "excerpt", f.excerpt)
	set("status", "status", f.status)
	set("type", "type", f.postType)
	set("category", "category", f.category)
	set("tags", "tags", f.tags)
	set("featured-image-url", "featured_image_url", f.featuredImageURL)
	if len(f.meta) > 0 {
		fields["meta_fields"] = f.meta
	}
	return json.Marshal(fields)
}

// postCmd は投稿の作成・更新・削除コマンド。
func postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, update or delete a post",
	}
	cmd.AddCommand(postCreateCmd())
	cmd.AddCommand(postUpdateCmd())
	cmd.AddCommand(postDeleteCmd())
	return cmd
}

func postCreateCmd() *cobra.Command {
	var f postFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags()
			if err != nil {
				return err
			}
			payload, err := f.body(cmd)
			if err != nil {
				return fmt.Errorf("building request body: %w", err)
			}
			body, err := client.call(cmd.Context(), http.MethodPost, "/post/create", nil, payload)
			if err != nil {
				return err
			}
			return printMutation(cmd, body)
		},
	}
	f.register(cmd)
	return cmd
}

func postUpdateCmd() *cobra.Command {
	var f postFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := clientFromFlags()
			if err != nil {
				return err
			}
			payload, err := f.body(cmd)
			if err != nil {
				return fmt.Errorf("building request body: %w", err)
			}
			body, err := client.call(cmd.Context(), http.MethodPost, "/post/update/"+id, nil, payload)
			if err != nil {
				return err
			}
			return printMutation(cmd, body)
		},
	}
	f.register(cmd)
	return cmd
}

func postDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := clientFromFlags()
			if err != nil {
				return err
			}
			body, err := client.call(cmd.Context(), http.MethodDelete, "/post/delete/"+id, nil, nil)
			if err != nil {
				return err
			}
			return printMutation(cmd, body)
		},
	}
}

func parseID(s string) (string, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return "", fmt.Errorf("invalid post id %q", s)
	}
	return strconv.FormatUint(id, 10), nil
}

func printMutation(cmd *cobra.Command, body []byte) error {
	if output == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	}
	var result struct {
		PostID  uint64 `json:"post_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if result.PostID > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (id: %d)\n", result.Message, result.PostID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	}
	return nil
}

// categoriesCmd はカテゴリの一覧と作成コマンド。
func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or create categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags()
			if err != nil {
				return err
			}
			body, err := client.call(cmd.Context(), http.MethodGet, "/categories", nil, nil)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var result struct {
				Categories []struct {
					ID    uint64 `json:"id"`
					Name  string `json:"name"`
					Slug  string `json:"slug"`
					Count int64  `json:"count"`
				} `json:"categories"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSLUG\tCOUNT")
			for _, c := range result.Categories {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", c.ID, c.Name, c.Slug, c.Count)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(categoryCreateCmd())
	return cmd
}
