package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/models"
)

var (
	logger     *slog.Logger
	serverURL  string
	skipVerify bool
	timeout    time.Duration
	verbose    bool
)

func init() {
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "Base URL of the registry or share-node service")
	flag.BoolVar(&skipVerify, "skip-verify", false, "Skip TLS certificate verification")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func main() {
	flag.Parse()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cli, err := client.New(client.Config{
		BaseURL:    serverURL,
		Timeout:    timeout,
		SkipVerify: skipVerify,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "version":
		handleVersion(ctx, cli)
	case "time":
		handleTime(ctx, cli)
	case "nodes":
		handleNodes(ctx, cli)
	case "node":
		handleNode(ctx, cli, cmdArgs)
	case "share":
		handleShare(ctx, cli, cmdArgs)
	case "status":
		handleStatus(ctx, cli, cmdArgs)
	case "consume":
		handleConsume(ctx, cli, cmdArgs)
	case "shareconsume":
		handleShareConsume(ctx, cli, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "%s Unknown command '%s'\n", color.RedString("Error:"), color.CyanString(command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: sharectl [flags] <command> [args]\n")
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  %s\n", color.GreenString("version"))
	fmt.Fprintf(os.Stderr, "  %s\n", color.GreenString("time"))
	fmt.Fprintf(os.Stderr, "  %s\n", color.GreenString("nodes"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", color.GreenString("node"), color.CyanString("<node_id>"))
	fmt.Fprintf(os.Stderr, "  %s %s %s %s %s %s %s %s\n",
		color.GreenString("share"),
		color.CyanString("<provider>"), color.CyanString("<consumer>"),
		color.CyanString("<resource_group>"), color.CyanString("<storage_account>"),
		color.CyanString("<container>"), color.CyanString("<folder>"), color.CyanString("[file]"))
	fmt.Fprintf(os.Stderr, "  %s %s %s %s %s %s %s %s\n",
		color.GreenString("status"),
		color.CyanString("<provider>"), color.CyanString("<consumer>"),
		color.CyanString("<resource_group>"), color.CyanString("<storage_account>"),
		color.CyanString("<container>"), color.CyanString("<folder>"), color.CyanString("[file]"))
	fmt.Fprintf(os.Stderr, "  %s %s %s %s\n",
		color.GreenString("consume"),
		color.CyanString("<provider>"), color.CyanString("<consumer>"), color.CyanString("<invitation_id>"))
	fmt.Fprintf(os.Stderr, "  %s %s %s %s\n",
		color.GreenString("shareconsume"),
		color.CyanString("<provider>"), color.CyanString("<consumer>"), color.CyanString("<invitation_id>"))
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

func handleVersion(ctx context.Context, cli *client.Client) {
	v, err := cli.Version(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Println(v)
}

func handleTime(ctx context.Context, cli *client.Client) {
	t, err := cli.Time(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Println(t)
}

func handleNodes(ctx context.Context, cli *client.Client) {
	nodes, err := cli.Nodes(ctx)
	if err != nil {
		fail(err)
	}
	if len(nodes) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", color.YellowString("No nodes online."))
		return
	}
	for _, n := range nodes {
		fmt.Println(nodeLine(n))
	}
}

func nodeLine(n models.Node) string {
	return fmt.Sprintf("%s %s %s", color.GreenString(n.NodeID), n.TenantID, n.Identity)
}

func handleNode(ctx context.Context, cli *client.Client, args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}
	node, err := cli.Node(ctx, args[0])
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%s Node '%s' not found.\n", color.RedString("Error:"), color.CyanString(args[0]))
			os.Exit(1)
		}
		fail(err)
	}
	printJSON(node)
}

func handleShare(ctx context.Context, cli *client.Client, args []string) {
	req, ok := shareRequestFromArgs(args)
	if !ok {
		printUsage()
		os.Exit(1)
	}
	resp, err := cli.Share(ctx, req)
	if err != nil {
		fail(err)
	}
	printJSON(resp)
}

func handleStatus(ctx context.Context, cli *client.Client, args []string) {
	req, ok := shareRequestFromArgs(args)
	if !ok {
		printUsage()
		os.Exit(1)
	}
	resp, err := cli.ShareStatus(ctx, req)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%s No invitation exists for that share yet.\n", color.RedString("Error:"))
			os.Exit(1)
		}
		fail(err)
	}
	printJSON(resp)
}

func handleConsume(ctx context.Context, cli *client.Client, args []string) {
	req, ok := consumeRequestFromArgs(args)
	if !ok {
		printUsage()
		os.Exit(1)
	}
	resp, err := cli.Consume(ctx, req)
	if err != nil {
		fail(err)
	}
	printJSON(resp)
}

func handleShareConsume(ctx context.Context, cli *client.Client, args []string) {
	req, ok := consumeRequestFromArgs(args)
	if !ok {
		printUsage()
		os.Exit(1)
	}
	resp, err := cli.ShareConsume(ctx, req)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%s Consumer node '%s' is not known to the service.\n",
				color.RedString("Error:"), color.CyanString(req.ConsumerNodeID))
			os.Exit(1)
		}
		fail(err)
	}
	printJSON(resp)
}

func shareRequestFromArgs(args []string) (models.ShareRequest, bool) {
	if len(args) < 6 {
		return models.ShareRequest{}, false
	}
	req := models.ShareRequest{
		ProviderNodeID: args[0],
		ConsumerNodeID: args[1],
		Dataset: models.Dataset{
			ResourceGroupName:  args[2],
			StorageAccountName: args[3],
			ContainerName:      args[4],
			FolderPath:         args[5],
		},
	}
	if len(args) > 6 {
		req.Dataset.FileName = args[6]
	}
	return req, true
}

func consumeRequestFromArgs(args []string) (models.ConsumeRequest, bool) {
	if len(args) < 3 {
		return models.ConsumeRequest{}, false
	}
	return models.ConsumeRequest{
		ProviderNodeID: args[0],
		ConsumerNodeID: args[1],
		InvitationID:   args[2],
	}, true
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
	os.Exit(1)
}
