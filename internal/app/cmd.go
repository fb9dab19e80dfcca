package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションを定期削除するワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はPostgreSQLのマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のAPIサーバーの/healthを確認する。
	// distrolessイメージのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空またはサポート外の場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker, CommandMigrate, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
