package cli

import (
	"fmt"
)

// printHelp prints the help message based on the provided arguments
func (c *CLI) printHelp(args []string) {
	switch len(args) {
	case 0:
		c.showGeneralHelp()
	case 1:
		c.showScopeHelp(args[0])
	case 2:
		c.showOperationHelp(args[0], args[1])
	default:
		fmt.Fprintln(c.out, "Invalid help command. Use 'help [scope] [operation]'")
	}
}

// showGeneralHelp displays an overview of all available commands grouped by scope
func (c *CLI) showGeneralHelp() {
	fmt.Fprintln(c.out, "Command syntax: <scope> <operation> [arguments]")
	fmt.Fprintln(c.out, "Nodes are addressed by outline index (1.2) or by id.")
	fmt.Fprintln(c.out, "\nAvailable commands:")
	currentScope := ""
	for _, cmd := range commandHelps {
		if cmd.Scope != currentScope {
			fmt.Fprintf(c.out, "\n%s:\n", cmd.Scope)
			currentScope = cmd.Scope
		}
		fmt.Fprintf(c.out, "  %-15s %s\n", cmd.Operation, cmd.ShortDesc)
	}
}

// showScopeHelp displays help information for all commands within a specific scope
func (c *CLI) showScopeHelp(scope string) {
	found := false
	for _, cmd := range commandHelps {
		if cmd.Scope == scope {
			if !found {
				fmt.Fprintf(c.out, "Commands for %s:\n\n", scope)
				found = true
			}
			fmt.Fprintf(c.out, "%-15s %s\n", cmd.Operation, cmd.ShortDesc)
		}
	}
	if !found {
		fmt.Fprintf(c.out, "No help found for %s\n", scope)
	}
}

// showOperationHelp displays detailed help information for a specific operation within a scope
func (c *CLI) showOperationHelp(scope, operation string) {
	for _, cmd := range commandHelps {
		if cmd.Scope == scope && cmd.Operation == operation {
			fmt.Fprintf(c.out, "Command: %s %s\n", scope, operation)
			fmt.Fprintf(c.out, "Description: %s\n", cmd.LongDesc)
			fmt.Fprintf(c.out, "Syntax: %s\n", cmd.Syntax)
			if len(cmd.Arguments) > 0 {
				fmt.Fprintln(c.out, "Arguments:")
				for _, arg := range cmd.Arguments {
					fmt.Fprintf(c.out, "  %s\n", arg)
				}
			}
			if len(cmd.Examples) > 0 {
				fmt.Fprintln(c.out, "Examples:")
				for _, ex := range cmd.Examples {
					fmt.Fprintf(c.out, "  %s\n", ex)
				}
			}
			return
		}
	}
	fmt.Fprintf(c.out, "No help found for %s %s\n", scope, operation)
}

// CommandHelp represents the structure of help information for a specific command.
type CommandHelp struct {
	Scope     string
	Operation string
	ShortDesc string
	LongDesc  string
	Syntax    string
	Arguments []string
	Examples  []string
}

// commandHelps is a slice of CommandHelp structs containing help information for all commands.
var commandHelps = []CommandHelp{
	{
		Scope:     "user",
		Operation: "add",
		ShortDesc: "Add a new user",
		LongDesc:  "Creates a new user account. Without a password argument the password is read from the terminal.",
		Syntax:    "user add <username> [password]",
		Arguments: []string{"username: The name of the new user", "password: (Optional) The password for the new user"},
		Examples:  []string{"user add john", "user add jane secret_password"},
	},
	{
		Scope:     "user",
		Operation: "login",
		ShortDesc: "Log in",
		LongDesc:  "Logs the session in as the given user. Without a password argument the password is read from the terminal.",
		Syntax:    "user login <username> [password]",
		Arguments: []string{"username: The user to log in as", "password: (Optional) The password of the user"},
		Examples:  []string{"user login john"},
	},
	{
		Scope:     "user",
		Operation: "logout",
		ShortDesc: "Log out",
		LongDesc:  "Logs the session out and deselects the current portfolio.",
		Syntax:    "user logout",
		Examples:  []string{"user logout"},
	},
	{
		Scope:     "user",
		Operation: "update",
		ShortDesc: "Update the current user",
		LongDesc:  "Changes the username or password of the logged in user. Use '-' to keep the username.",
		Syntax:    "user update <username> [new_username|-] [new_password]",
		Arguments: []string{"username: The name of the logged in user", "new_username: (Optional) The new username, '-' keeps it", "new_password: (Optional) The new password"},
		Examples:  []string{"user update john johnny", "user update john - new_password"},
	},
	{
		Scope:     "user",
		Operation: "delete",
		ShortDesc: "Delete the current user",
		LongDesc:  "Deletes the logged in user together with all portfolios, nodes and assets the user owns.",
		Syntax:    "user delete <username>",
		Arguments: []string{"username: The name of the logged in user"},
		Examples:  []string{"user delete john"},
	},
	{
		Scope:     "portfolio",
		Operation: "add",
		ShortDesc: "Create a new portfolio",
		LongDesc:  "Creates a portfolio owned by the current user and selects it. Portfolios are private unless created public.",
		Syntax:    "portfolio add <name> [description] [public|private]",
		Arguments: []string{"name: The name of the new portfolio", "description: (Optional) A short description", "visibility: (Optional) 'public' or 'private'"},
		Examples:  []string{"portfolio add cv", `portfolio add work "Things I built" public`},
	},
	{
		Scope:     "portfolio",
		Operation: "update",
		ShortDesc: "Rename the selected portfolio",
		LongDesc:  "Renames the selected portfolio and optionally replaces its description.",
		Syntax:    "portfolio update <new_name> [description]",
		Arguments: []string{"new_name: The new name", "description: (Optional) The new description"},
		Examples:  []string{"portfolio update resume", `portfolio update resume "Updated 2024"`},
	},
	{
		Scope:     "portfolio",
		Operation: "delete",
		ShortDesc: "Delete a portfolio",
		LongDesc:  "Deletes the named portfolio, or the selected one, with all its nodes and assets.",
		Syntax:    "portfolio delete [name]",
		Arguments: []string{"name: (Optional) The portfolio to delete"},
		Examples:  []string{"portfolio delete", "portfolio delete old_cv"},
	},
	{
		Scope:     "portfolio",
		Operation: "permission",
		ShortDesc: "Show or change portfolio visibility",
		LongDesc:  "Displays whether a portfolio is public or changes it. Public portfolios are readable by everyone.",
		Syntax:    "portfolio permission <name> [public|private]",
		Arguments: []string{"name: The portfolio", "visibility: (Optional) 'public' or 'private'"},
		Examples:  []string{"portfolio permission cv", "portfolio permission cv public"},
	},
	{
		Scope:     "portfolio",
		Operation: "import",
		ShortDesc: "Import a portfolio from a file",
		LongDesc:  "Imports a portfolio from a JSON, XML or YAML file, optionally zstd compressed (.zst). A portfolio with the same name is only replaced with --replace.",
		Syntax:    "portfolio import <filename> [--replace]",
		Arguments: []string{"filename: The file to import; the format follows the extension", "--replace: (Optional) Replace a portfolio with the same name"},
		Examples:  []string{"portfolio import cv.json", "portfolio import cv.yaml.zst --replace"},
	},
	{
		Scope:     "portfolio",
		Operation: "export",
		ShortDesc: "Export a portfolio to a file",
		LongDesc:  "Exports the selected or named portfolio, hidden nodes included, to a JSON, XML or YAML file.",
		Syntax:    "portfolio export <filename> [name]",
		Arguments: []string{"filename: The file to write; the format follows the extension", "name: (Optional) The portfolio to export"},
		Examples:  []string{"portfolio export cv.json", "portfolio export backup.xml.zst cv"},
	},
	{
		Scope:     "portfolio",
		Operation: "select",
		ShortDesc: "Select a portfolio",
		LongDesc:  "Selects a portfolio by name or id, or deselects the current one without arguments.",
		Syntax:    "portfolio select [name|id]",
		Arguments: []string{"name: (Optional) The portfolio to select"},
		Examples:  []string{"portfolio select", "portfolio select cv"},
	},
	{
		Scope:     "portfolio",
		Operation: "list",
		ShortDesc: "List available portfolios",
		LongDesc:  "Lists the portfolios of the current user and the public portfolios of others.",
		Syntax:    "portfolio list",
		Examples:  []string{"portfolio list"},
	},
	{
		Scope:     "portfolio",
		Operation: "view",
		ShortDesc: "View the selected portfolio",
		LongDesc:  "Renders the selected portfolio. Visitors never see hidden nodes.",
		Syntax:    "portfolio view [tree|outline|grid|board|timeline]",
		Arguments: []string{"view: (Optional) The presentation, defaults to outline"},
		Examples:  []string{"portfolio view", "portfolio view board"},
	},
	{
		Scope:     "node",
		Operation: "add",
		ShortDesc: "Add a new node",
		LongDesc:  "Adds a node under a parent ('-' for the top level). Known fields are type, url, description, tags, order and visible; other fields are stored as extra content.",
		Syntax:    "node add <parent|-> <title> [<field>:<value>]...",
		Arguments: []string{"parent: Outline index or id of the parent, '-' for a root", "title: The title of the node", "field:value: (Optional) Extra fields"},
		Examples:  []string{`node add - Projects`, `node add 1 "Portfolio Tree" type:project tags:go,cli url:https://example.com`},
	},
	{
		Scope:     "node",
		Operation: "update",
		ShortDesc: "Update a node",
		LongDesc:  "Replaces the title and fields of a node. Order and visibility are kept unless given.",
		Syntax:    "node update <node> <title> [<field>:<value>]...",
		Arguments: []string{"node: Outline index or id", "title: The new title", "field:value: (Optional) Fields to set"},
		Examples:  []string{`node update 1.1 "Portfolio Tree v2" type:project`},
	},
	{
		Scope:     "node",
		Operation: "move",
		ShortDesc: "Move a node",
		LongDesc:  "Moves a node and its subtree under a new parent. Without an order the node is placed last.",
		Syntax:    "node move <node> <parent|-> [order]",
		Arguments: []string{"node: The node to move", "parent: The new parent, '-' for the top level", "order: (Optional) Sort position among the new siblings"},
		Examples:  []string{"node move 1.2 2", "node move 3 - 0"},
	},
	{
		Scope:     "node",
		Operation: "reorder",
		ShortDesc: "Reorder child nodes",
		LongDesc:  "Sets the order of all children of a parent. Every child must be listed exactly once.",
		Syntax:    "node reorder <parent|-> <node>...",
		Arguments: []string{"parent: The parent whose children are reordered", "node: The children in their new order"},
		Examples:  []string{"node reorder 1 1.3 1.1 1.2", "node reorder - 2 1"},
	},
	{
		Scope:     "node",
		Operation: "hide",
		ShortDesc: "Hide a node from visitors",
		LongDesc:  "Hides a node and with it its subtree from everyone but the owner.",
		Syntax:    "node hide <node>",
		Examples:  []string{"node hide 2.1"},
	},
	{
		Scope:     "node",
		Operation: "show",
		ShortDesc: "Show a hidden node",
		LongDesc:  "Makes a hidden node visible again.",
		Syntax:    "node show <node>",
		Examples:  []string{"node show 2.1"},
	},
	{
		Scope:     "node",
		Operation: "delete",
		ShortDesc: "Delete a node",
		LongDesc:  "Deletes a node and its subtree, including attached assets.",
		Syntax:    "node delete <node>",
		Examples:  []string{"node delete 1.2"},
	},
	{
		Scope:     "node",
		Operation: "find",
		ShortDesc: "Find nodes",
		LongDesc:  "Fuzzy searches titles, tags and descriptions of the selected portfolio.",
		Syntax:    "node find <query>...",
		Examples:  []string{"node find golang", `node find "tree tool"`},
	},
	{
		Scope:     "asset",
		Operation: "add",
		ShortDesc: "Upload a file",
		LongDesc:  "Uploads a local file into the selected portfolio, optionally attached to a node.",
		Syntax:    "asset add <file> [node]",
		Arguments: []string{"file: Path of the local file", "node: (Optional) The node to attach the file to"},
		Examples:  []string{"asset add ~/cv.pdf", "asset add screenshot.png 1.1"},
	},
	{
		Scope:     "asset",
		Operation: "list",
		ShortDesc: "List uploaded files",
		LongDesc:  "Lists the assets of the selected portfolio.",
		Syntax:    "asset list",
		Examples:  []string{"asset list"},
	},
	{
		Scope:     "asset",
		Operation: "get",
		ShortDesc: "Download a file",
		LongDesc:  "Writes the content of an asset to a local file.",
		Syntax:    "asset get <asset_id> <file>",
		Examples:  []string{"asset get 01HZY3J1V6 ./cv.pdf"},
	},
	{
		Scope:     "asset",
		Operation: "delete",
		ShortDesc: "Delete a file",
		LongDesc:  "Deletes an asset and its stored content.",
		Syntax:    "asset delete <asset_id>",
		Examples:  []string{"asset delete 01HZY3J1V6"},
	},
	{
		Scope:     "system",
		Operation: "exit",
		ShortDesc: "Exit the program",
		LongDesc:  "Exits the shell. 'exit' and 'quit' work as shortcuts.",
		Syntax:    "system exit",
		Examples:  []string{"system exit", "exit"},
	},
}
