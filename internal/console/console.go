// Package console is the interactive line-oriented command reader
// attached to the node event loop: transacao, criar_bloco and
// exibir_blockchain (spec.md §6), backed by the driver's
// SubmitTransaction/Seal/Chain here. Grounded on original_source/src/main.rs's stdin command loop —
// the prompt text and per-field retry-on-invalid-input behavior mirror
// ler_u32_async/ler_string_async/etc. exactly, rendered in Go idiom
// (bufio.Scanner instead of an async line stream).
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/eduardozborowski/acadchain/internal/chain"
	"github.com/eduardozborowski/acadchain/internal/domain"
)

// Driver is the subset of *node.Node the console needs. Kept as an
// interface so tests can exercise command parsing against a fake.
type Driver interface {
	SubmitTransaction(tx domain.Transaction) error
	Seal() error
	Chain() []chain.Block
	PendingCount() int
	IsAuthority() bool
}

// Console reads commands from in and writes prompts/output to out.
type Console struct {
	scanner *bufio.Scanner
	out     io.Writer
	driver  Driver
}

// New builds a console around the given node driver, reading lines from
// in and writing all prompts and output to out.
func New(driver Driver, in io.Reader, out io.Writer) *Console {
	return &Console{
		scanner: bufio.NewScanner(in),
		out:     out,
		driver:  driver,
	}
}

// Run reads commands until in is exhausted (EOF / Ctrl-D) or the
// underlying scanner errors, matching spec.md §6's "exit 0 on clean
// shutdown".
func (c *Console) Run() error {
	fmt.Fprintln(c.out, "Type a command (e.g. 'transacao', 'criar_bloco' or 'exibir_blockchain'):")
	for c.scanner.Scan() {
		switch strings.TrimSpace(c.scanner.Text()) {
		case "transacao":
			c.runTransacao()
		case "criar_bloco":
			c.runCriarBloco()
		case "exibir_blockchain":
			c.runExibirBlockchain()
		case "":
			// blank line between commands, ignore
		default:
			fmt.Fprintln(c.out, "Unknown command. Try 'transacao', 'criar_bloco' or 'exibir_blockchain'.")
		}
	}
	return c.scanner.Err()
}

func (c *Console) runTransacao() {
	fmt.Fprintln(c.out, "Transaction id:")
	id := c.readUint32()
	fmt.Fprintln(c.out, "Student id:")
	studentID := c.readUint32()
	fmt.Fprintln(c.out, "Student name:")
	name := c.readString()
	fmt.Fprintln(c.out, "Birth year:")
	year := c.readInt()
	fmt.Fprintln(c.out, "Birth month (1-12):")
	month := c.readUint32()
	fmt.Fprintln(c.out, "Birth day:")
	day := c.readUint32()
	fmt.Fprintln(c.out, "Term year:")
	termYear := c.readUint32()
	fmt.Fprintln(c.out, "Term semester:")
	semester := c.readUint8()

	student := domain.NewStudent(studentID, name, domain.NewDate(year, time.Month(month), int(day)))
	term := domain.NewTerm(id, termYear, semester)
	tx := domain.NewTransaction(id, student, term)

	if err := c.driver.SubmitTransaction(tx); err != nil {
		fmt.Fprintf(c.out, "Error submitting transaction: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Transaction created and broadcast.\nType the next command:")
}

func (c *Console) runCriarBloco() {
	if !c.driver.IsAuthority() {
		fmt.Fprintln(c.out, "This node is not an authority and cannot seal blocks.")
		return
	}
	fmt.Fprintln(c.out, "Sealing block...")
	if err := c.driver.Seal(); err != nil {
		fmt.Fprintf(c.out, "Error sealing block: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Block sealed and broadcast.")
}

func (c *Console) runExibirBlockchain() {
	snapshot := c.driver.Chain()
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		log.Warnf("console: marshal chain for display: %v", err)
		fmt.Fprintln(c.out, "Error rendering chain.")
		return
	}
	fmt.Fprintf(c.out, "%s\n", encoded)
	fmt.Fprintf(c.out, "Chain length: %d, pending transactions: %d\n", len(snapshot), c.driver.PendingCount())
}

func (c *Console) readLine() (string, bool) {
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

func (c *Console) readUint32() uint32 {
	for {
		line, ok := c.readLine()
		if !ok {
			return 0
		}
		v, err := strconv.ParseUint(line, 10, 32)
		if err == nil {
			return uint32(v)
		}
		fmt.Fprintln(c.out, "Invalid value, please type a valid number:")
	}
}

func (c *Console) readUint8() uint8 {
	for {
		line, ok := c.readLine()
		if !ok {
			return 0
		}
		v, err := strconv.ParseUint(line, 10, 8)
		if err == nil {
			return uint8(v)
		}
		fmt.Fprintln(c.out, "Invalid value, please type a valid number:")
	}
}

func (c *Console) readInt() int {
	for {
		line, ok := c.readLine()
		if !ok {
			return 0
		}
		v, err := strconv.Atoi(line)
		if err == nil {
			return v
		}
		fmt.Fprintln(c.out, "Invalid value, please type a valid number:")
	}
}

func (c *Console) readString() string {
	line, _ := c.readLine()
	return line
}
