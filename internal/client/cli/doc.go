// Package cli provides the interactive linkkeeper command-line client.
//
// It wires configuration, the local state database, the API client and a
// REPL. A cached access token is restored at start, so a restart does not
// force a new login while the token is valid. A background watcher polls the
// server's health route and shows online/offline in the prompt.
//
// Commands cover account management (register, login, logout, reset) and
// linked messaging accounts (sendcode, verify, accounts, check, delete,
// refresh). See runREPL for the dispatch table.
package cli
