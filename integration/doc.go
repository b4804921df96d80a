// Package integration wires notionbolt components from configuration.
//
// It builds the logger, Notion client, report store, LLM client, summarizer
// and digest scheduler that the slack, serve and report commands share.
//
// Configuration is read from the process-global Viper instance; the host owns
// env/config-file loading. Config.Overrides are applied last.
package integration
