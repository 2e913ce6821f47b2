package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はレビューダッシュボードのサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はスケジューラのワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandScheduled はスケジュール生成を1回だけ実行することを示す。
	// cron等の外部スケジューラから起動する場合に使う。
	CommandScheduled Command = "scheduled"
	// CommandMonitor はニュースモニターのスキャンを1回だけ実行することを示す。
	CommandMonitor Command = "monitor"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "scheduled":
		return CommandScheduled
	case "monitor":
		return CommandMonitor
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
