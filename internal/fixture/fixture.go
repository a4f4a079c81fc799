// Package fixture loads YAML seed data for a ledger and applies it through
// the worker.
//
// Example:
//
//	name: demo
//	users:
//	  - name: alice
//	    password: pw
//	entries:
//	  - type: mint
//	    source: bank
//	    destination: alice
//	    amount: 10
//	sends:
//	  - from: alice
//	    to: bob
//	    amount: "2.5"
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerd/internal/ledger"
)

// Fixture is a named set of accounts, raw ledger rows and transfers.
type Fixture struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Users       []User               `yaml:"users,omitempty"`
	Entries     []ledger.LedgerEntry `yaml:"entries,omitempty"`
	Sends       []Send               `yaml:"sends,omitempty"`
}

// User is an account to register.
type User struct {
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// Send is a transfer to perform after users exist. Amount is a decimal
// string.
type Send struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Users   int `json:"users"`
	Entries int `json:"entries"`
	Sends   int `json:"sends"`
}

// Doer runs a command to completion. Implemented by *engine.Worker.
type Doer interface {
	Do(ctx context.Context, kind ledger.Kind, sel ledger.Selector, opts ...ledger.CommandOption) (ledger.Reply, error)
}

// Load reads and validates a fixture file. Unknown fields are rejected.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	for i, u := range f.Users {
		if u.Name == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: name and password are required", i)
		}
	}
	for i, e := range f.Entries {
		if e.ID != 0 {
			return fmt.Errorf("entries[%d]: id is assigned by the store", i)
		}
	}
	for i, s := range f.Sends {
		if s.From == "" || s.To == "" || s.Amount == "" {
			return fmt.Errorf("sends[%d]: from, to and amount are required", i)
		}
	}
	return nil
}

// Apply registers users, inserts entries in one bulk command and then
// performs sends, stopping at the first failure.
func (f *Fixture) Apply(ctx context.Context, d Doer) (Summary, error) {
	var sum Summary

	for _, u := range f.Users {
		if err := expect(ctx, d, ledger.KindRegister, ledger.WithArgs(u.Name, u.Password)); err != nil {
			return sum, fmt.Errorf("register %s: %w", u.Name, err)
		}
		sum.Users++
	}

	if len(f.Entries) > 0 {
		if err := expect(ctx, d, ledger.KindBulkInsert, ledger.WithEntries(f.Entries...)); err != nil {
			return sum, fmt.Errorf("insert entries: %w", err)
		}
		sum.Entries = len(f.Entries)
	}

	for _, s := range f.Sends {
		if err := expect(ctx, d, ledger.KindSend, ledger.WithArgs(s.From, s.To, s.Amount)); err != nil {
			return sum, fmt.Errorf("send %s -> %s: %w", s.From, s.To, err)
		}
		sum.Sends++
	}

	return sum, nil
}

// expect runs one command and turns an ErrorReply into an error.
func expect(ctx context.Context, d Doer, kind ledger.Kind, opts ...ledger.CommandOption) error {
	reply, err := d.Do(ctx, kind, nil, opts...)
	if err != nil {
		return err
	}
	if er, ok := reply.(ledger.ErrorReply); ok {
		return er.Err
	}
	return nil
}
