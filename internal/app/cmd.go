package app

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hitoshi/storefront/internal/config"
)

// Command はstorefrontバイナリのサブコマンド。
type Command string

const (
	// CommandServe はBFFのAPIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker はclient_stateの保持期間クリーンアップを日次で実行する。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを確認する。
	// distrolessイメージにはcurlがないためDockerのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

// commandSpec はサブコマンドごとの起動条件。
type commandSpec struct {
	cmd Command
	// stores は起動できるSTORE_DRIVER。空ならすべて。
	stores []string
	// database はDATABASE_URLを必須とする。
	database bool
	// standalone は.envと設定の読み込みを行わない。
	standalone bool
}

var commandSpecs = []commandSpec{
	{cmd: CommandServe},
	{cmd: CommandWorker, stores: []string{config.StorePostgres}, database: true},
	{cmd: CommandMigrate, database: true},
	{cmd: CommandHealthcheck, standalone: true},
}

func lookupCommand(c Command) (commandSpec, bool) {
	for _, s := range commandSpecs {
		if s.cmd == c {
			return s, true
		}
	}
	return commandSpec{}, false
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空、または先頭がフラグの場合はCommandServeとみなす。
// 未知のサブコマンドは打ち間違いのままサーバーを起動しないようエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return CommandServe, nil
	}
	c := Command(strings.ToLower(args[0]))
	if _, ok := lookupCommand(c); !ok {
		names := make([]string, 0, len(commandSpecs))
		for _, s := range commandSpecs {
			names = append(names, string(s.cmd))
		}
		return "", fmt.Errorf("unknown command %q (%s)", args[0], strings.Join(names, ", "))
	}
	return c, nil
}

// Standalone は設定を読み込まずに実行できるサブコマンドかを返す。
func (c Command) Standalone() bool {
	s, _ := lookupCommand(c)
	return s.standalone
}

// Check は設定がサブコマンドの起動条件を満たしているかを確認する。
func (c Command) Check(cfg *config.Config) error {
	s, ok := lookupCommand(c)
	if !ok {
		return fmt.Errorf("unknown command %q", c)
	}
	if len(s.stores) > 0 && !slices.Contains(s.stores, cfg.StoreDriver) {
		return fmt.Errorf("%s requires STORE_DRIVER=%s (got %q)", c, strings.Join(s.stores, "|"), cfg.StoreDriver)
	}
	if s.database && cfg.DatabaseURL == "" {
		return fmt.Errorf("%s requires DATABASE_URL", c)
	}
	return nil
}
