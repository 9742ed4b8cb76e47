// Command godbcli is an interactive shell over godb.Engine. It exists to
// give the lock table, wait-for graph, and buffer pool a runtime surface to
// drive by hand: open several shells against the same catalog, start
// transactions in each, and watch shared/exclusive grants, upgrades, and
// deadlock aborts happen live instead of only inside a unit test.
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/srmadden/godb/godb"
)

func main() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "godb> ",
		HistoryFile:     "/tmp/godbcli_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Println("readline init failed:", err)
		return
	}
	defer rl.Close()

	shell := newShell()
	fmt.Println("godbcli — type 'help' for commands")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Println("error:", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		shell.dispatch(line)
	}
}

// shell holds the open transactions this CLI session has started, keyed by
// the name the user bound each one to with 'begin' (simpler to type than a
// raw TransactionID string).
type shell struct {
	engine *godb.Engine
	txns   map[string]godb.TransactionID
}

func newShell() *shell {
	return &shell{txns: make(map[string]godb.TransactionID)}
}

func (s *shell) dispatch(line string) {
	args := strings.Fields(line)
	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "help":
		s.help()
	case "open":
		s.cmdOpen(args)
	case "tables":
		s.cmdTables(args)
	case "pages":
		s.cmdPages(args)
	case "begin":
		s.cmdBegin(args)
	case "get":
		s.cmdGet(args)
	case "insert":
		s.cmdInsert(args)
	case "scan":
		s.cmdScan(args)
	case "commit":
		s.cmdCommit(args)
	case "abort":
		s.cmdAbort(args)
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
}

func (s *shell) help() {
	fmt.Println(`commands:
  open <catalog-file>               load a catalog
  tables                            list tables in the loaded catalog
  pages <table>                     number of pages in <table>
  begin <name>                      start a transaction, bind it to <name>
  get <name> <table> <page> <r|w>   fetch a page under shared(r)/exclusive(w), blocks on lock contention
  insert <name> <table> <f1> <f2>.. insert a tuple's fields into <table>
  scan <name> <table>                print every row of <table> under <name>'s shared lock
  commit <name>                     commit the transaction bound to <name>
  abort <name>                      abort the transaction bound to <name>
  exit                              quit`)
}

func (s *shell) cmdOpen(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: open <catalog-file>")
		return
	}
	engine, err := godb.NewEngine(100)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := engine.LoadCatalog(args[0]); err != nil {
		fmt.Println("error:", err)
		return
	}
	s.engine = engine
	fmt.Println("catalog loaded")
}

func (s *shell) requireEngine() bool {
	if s.engine == nil {
		fmt.Println("no catalog loaded, run 'open <catalog-file>' first")
		return false
	}
	return true
}

func (s *shell) cmdTables(args []string) {
	if !s.requireEngine() {
		return
	}
	for _, name := range s.engine.Catalog().Tables() {
		fmt.Println(" ", name)
	}
}

func (s *shell) cmdPages(args []string) {
	if !s.requireEngine() || len(args) != 1 {
		fmt.Println("usage: pages <table>")
		return
	}
	hf := s.engine.Table(args[0])
	if hf == nil {
		fmt.Println("no such table:", args[0])
		return
	}
	fmt.Println(hf.NumPages())
}

func (s *shell) cmdBegin(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: begin <name>")
		return
	}
	tid := godb.NewTID()
	s.txns[args[0]] = tid
	fmt.Println("started", tid)
}

func (s *shell) resolveTid(name string) (godb.TransactionID, bool) {
	tid, ok := s.txns[name]
	if !ok {
		fmt.Printf("no transaction bound to %q, run 'begin %s' first\n", name, name)
	}
	return tid, ok
}

func (s *shell) cmdGet(args []string) {
	if !s.requireEngine() || len(args) != 4 {
		fmt.Println("usage: get <name> <table> <page> <r|w>")
		return
	}
	tid, ok := s.resolveTid(args[0])
	if !ok {
		return
	}
	hf := s.engine.Table(args[1])
	if hf == nil {
		fmt.Println("no such table:", args[1])
		return
	}
	pageNo, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Println("bad page number:", args[2])
		return
	}
	perm := godb.ReadPerm
	if args[3] == "w" {
		perm = godb.WritePerm
	}

	fmt.Println("waiting for lock...")
	_, err = s.engine.BufferPool().GetPage(tid, hf, pageNo, perm)
	if err != nil {
		if godb.IsTransactionAborted(err) {
			fmt.Println("deadlock: transaction aborted:", err)
			delete(s.txns, args[0])
			return
		}
		fmt.Println("error:", err)
		return
	}
	fmt.Println("granted")
}

func (s *shell) cmdInsert(args []string) {
	if !s.requireEngine() || len(args) < 2 {
		fmt.Println("usage: insert <name> <table> <field1> [field2 ...]")
		return
	}
	tid, ok := s.resolveTid(args[0])
	if !ok {
		return
	}
	hf := s.engine.Table(args[1])
	if hf == nil {
		fmt.Println("no such table:", args[1])
		return
	}
	desc := hf.Descriptor()
	fieldStrs := args[2:]
	if len(fieldStrs) != len(desc.Fields) {
		fmt.Printf("table %s expects %d fields, got %d\n", args[1], len(desc.Fields), len(fieldStrs))
		return
	}

	fields := make([]godb.DBValue, len(fieldStrs))
	for i, fs := range fieldStrs {
		switch desc.Fields[i].Ftype {
		case godb.IntType:
			v, err := strconv.ParseInt(fs, 10, 64)
			if err != nil {
				fmt.Println("bad int field:", fs)
				return
			}
			fields[i] = godb.IntField{Value: v}
		default:
			fields[i] = godb.StringField{Value: fs}
		}
	}

	t := &godb.Tuple{Desc: *desc, Fields: fields}
	if err := s.engine.BufferPool().InsertTuple(tid, hf, t); err != nil {
		if godb.IsTransactionAborted(err) {
			fmt.Println("deadlock: transaction aborted:", err)
			delete(s.txns, args[0])
			return
		}
		fmt.Println("error:", err)
		return
	}
	fmt.Println("inserted")
}

func (s *shell) cmdScan(args []string) {
	if !s.requireEngine() || len(args) != 2 {
		fmt.Println("usage: scan <name> <table>")
		return
	}
	tid, ok := s.resolveTid(args[0])
	if !ok {
		return
	}
	hf := s.engine.Table(args[1])
	if hf == nil {
		fmt.Println("no such table:", args[1])
		return
	}

	iter, err := hf.Iterator(tid)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(hf.Descriptor().HeaderString(true))
	for {
		tup, err := iter()
		if err != nil {
			if godb.IsTransactionAborted(err) {
				fmt.Println("deadlock: transaction aborted:", err)
				delete(s.txns, args[0])
				return
			}
			fmt.Println("error:", err)
			return
		}
		if tup == nil {
			return
		}
		fmt.Println(tup.PrettyPrintString(true))
	}
}

func (s *shell) cmdCommit(args []string) {
	if !s.requireEngine() || len(args) != 1 {
		fmt.Println("usage: commit <name>")
		return
	}
	tid, ok := s.resolveTid(args[0])
	if !ok {
		return
	}
	if err := s.engine.Commit(tid); err != nil {
		fmt.Println("error:", err)
		return
	}
	delete(s.txns, args[0])
	fmt.Println("committed")
}

func (s *shell) cmdAbort(args []string) {
	if !s.requireEngine() || len(args) != 1 {
		fmt.Println("usage: abort <name>")
		return
	}
	tid, ok := s.resolveTid(args[0])
	if !ok {
		return
	}
	if err := s.engine.Abort(tid); err != nil {
		fmt.Println("error:", err)
		return
	}
	delete(s.txns, args[0])
	fmt.Println("aborted")
}
