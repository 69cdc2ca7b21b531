package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickyhof/SliceDB"
	"github.com/nickyhof/SliceDB/core"
	"github.com/nickyhof/SliceDB/db"
	"github.com/nickyhof/SliceDB/ps"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	instance    *SliceDB.Instance
	identity    core.Identity
	archive     *ps.Archive
	history     []string
	historyFile string
}

func main() {
	dbPath := flag.String("db", "slicedb.duckdb", "Path to the DuckDB database file")
	archiveDir := flag.String("archiveDir", "", "Directory for the snapshot archive")
	gitUrl := flag.String("gitUrl", "", "Git URL to clone the snapshot archive from")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute (non-interactive)")
	userName := flag.String("name", "SliceDB", "Author name for snapshots")
	userEmail := flag.String("email", "cli@slicedb.local", "Author email for snapshots")
	flag.Parse()

	printBanner()

	fmt.Printf("%sUsing database: %s%s\n", SuccessColor, *dbPath, ResetColor)

	cli := &CLI{
		instance: SliceDB.Open(*dbPath),
		identity: core.Identity{
			Name:  *userName,
			Email: *userEmail,
		},
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	if *archiveDir != "" {
		fmt.Printf("%sUsing archive: %s%s\n", SuccessColor, *archiveDir, ResetColor)
		var gitUrlPtr *string
		if *gitUrl != "" {
			gitUrlPtr = gitUrl
		}
		archive, err := ps.NewFileArchive(*archiveDir, gitUrlPtr)
		if err != nil {
			fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
			return
		}
		cli.archive = &archive
	}

	cli.loadHistory()

	// Execute SQL file if provided
	if *sqlFile != "" {
		err := cli.importFile(*sqlFile)
		if err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("SliceDB v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║  Out-of-core DuckDB Table Processing  ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		// Show prompt
		prompt := cli.getPrompt(multiLineBuffer.Len() > 0)
		fmt.Print(prompt)

		// Read input
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		// Handle empty input
		if strings.TrimSpace(input) == "" {
			continue
		}

		// Check for special commands (only when not in multi-line mode)
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Multi-line support: accumulate until we see a semicolon
		multiLineBuffer.WriteString(input)

		// Check if the statement is complete (ends with ;)
		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		// Execute the complete statement
		sql := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(sql) == "" {
			continue
		}

		// Add to history
		cli.addToHistory(sql + ";")

		// Execute SQL
		if err := cli.execute(sql); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		}
	}
}

// execute runs one statement in its own session scope. Statements that
// produce rows are rendered as a table; everything else commits silently.
func (cli *CLI) execute(sql string) error {
	return cli.instance.Session(context.Background(), func(s *db.Session) error {
		if isQuery(sql) {
			frame, err := s.QueryFrame(sql)
			if err != nil {
				return err
			}
			frame.Display()
			return nil
		}

		if err := s.Exec(sql); err != nil {
			return err
		}
		fmt.Printf("%s✓ ok%s\n", SuccessColor, ResetColor)
		return nil
	})
}

// isQuery reports whether a statement produces a result set.
func isQuery(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "PRAGMA", "FROM", "SUMMARIZE", "EXPLAIN"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	return fmt.Sprintf("%sslicedb>%s ", PromptColor, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	trimmed := strings.TrimSpace(input)
	parts := strings.Fields(trimmed)

	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		if err := cli.execute("SHOW TABLES"); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		}

	case ".schema":
		if len(parts) > 1 {
			if err := cli.execute("DESCRIBE " + parts[1]); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .schema <table>%s\n", ErrorColor, ResetColor)
		}

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("SliceDB version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			err := cli.importFile(parts[1])
			if err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .import <file.sql>%s\n", ErrorColor, ResetColor)
		}

	case ".snapshot":
		cli.snapshot(strings.Join(parts[1:], " "))

	case ".log":
		cli.showLog()

	case ".restore":
		if len(parts) > 1 {
			cli.restore(parts[1])
		} else {
			fmt.Printf("%s✗ Usage: .restore <snapshot-id>%s\n", ErrorColor, ResetColor)
		}

	case ".tag":
		if len(parts) > 1 {
			cli.tag(parts[1])
		} else {
			fmt.Printf("%s✗ Usage: .tag <name>%s\n", ErrorColor, ResetColor)
		}

	case ".export":
		if len(parts) > 1 {
			if err := cli.instance.Export(parts[1], nil); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			} else {
				fmt.Printf("%s✓ Exported to %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .export <url>%s\n", ErrorColor, ResetColor)
		}

	case ".importdb":
		if len(parts) > 1 {
			if err := cli.instance.Import(parts[1], nil); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			} else {
				fmt.Printf("%s✓ Imported from %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .importdb <url>%s\n", ErrorColor, ResetColor)
		}

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) requireArchive() bool {
	if cli.archive == nil {
		fmt.Printf("%s✗ No archive configured (start with -archiveDir)%s\n", ErrorColor, ResetColor)
		return false
	}
	return true
}

func (cli *CLI) snapshot(message string) {
	if !cli.requireArchive() {
		return
	}
	if message == "" {
		message = "snapshot"
	}
	snapshot, err := cli.instance.Snapshot(cli.archive, cli.identity, message)
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	fmt.Printf("%s✓ Snapshot %s%s\n", SuccessColor, snapshot.Id[:8], ResetColor)
}

func (cli *CLI) showLog() {
	if !cli.requireArchive() {
		return
	}
	snapshots, err := cli.archive.History()
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	for _, snapshot := range snapshots {
		fmt.Printf("  %s\n", strings.TrimSpace(snapshot.String()))
	}
}

func (cli *CLI) restore(id string) {
	if !cli.requireArchive() {
		return
	}
	if err := cli.instance.Restore(cli.archive, id); err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	fmt.Printf("%s✓ Restored %s%s\n", SuccessColor, id, ResetColor)
}

func (cli *CLI) tag(name string) {
	if !cli.requireArchive() {
		return
	}
	if err := cli.archive.Tag(name, nil); err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	fmt.Printf("%s✓ Tagged latest snapshot as %s%s\n", SuccessColor, name, ResetColor)
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .help, .h          Show this help message")
	fmt.Println("  .quit, .exit       Exit the CLI")
	fmt.Println("  .tables            List tables")
	fmt.Println("  .schema <table>    Describe a table")
	fmt.Println("  .import <file>     Execute SQL statements from a file")
	fmt.Println("  .snapshot [msg]    Commit the database file to the archive")
	fmt.Println("  .log               List archived snapshots")
	fmt.Println("  .restore <id>      Restore an archived snapshot")
	fmt.Println("  .tag <name>        Name the latest snapshot")
	fmt.Println("  .export <url>      Copy the database file to a URL")
	fmt.Println("  .importdb <url>    Replace the database file from a URL")
	fmt.Println("  .history           Show command history")
	fmt.Println("  .clear             Clear the screen")
	fmt.Println("  .version           Show version info")
	fmt.Println()
	fmt.Printf("%s%sSQL:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  Any DuckDB statement, terminated with a semicolon.")
	fmt.Println("  Each statement runs in its own transaction scope.")
	fmt.Println()
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	// Limit history size
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".slicedb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	// Save last 1000 entries
	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile reads and executes SQL statements from a file
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	content := string(data)
	statements := splitStatements(content)

	successCount := 0
	errorCount := 0

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		if err := cli.execute(stmt); err != nil {
			fmt.Printf("%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(stmt, 50), ResetColor)
			fmt.Printf("      Error: %v\n", err)
			errorCount++
		} else {
			successCount++
			fmt.Printf("%s[%d] ✓ %s%s\n", SuccessColor, i+1, truncate(stmt, 50), ResetColor)
		}
	}

	fmt.Printf("\n%s✓ Import complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)

	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		// Handle string literals
		if (ch == '\'' || ch == '"') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		// Handle comments
		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			// Skip to end of line
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		// Statement separator
		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	// Handle last statement without semicolon
	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
