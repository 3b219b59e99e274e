package app

// Command はバイナリの起動モードを表す。
// 契約管理のAPIサーバーと期限切れスイープ用ワーカーは同一バイナリの
// サブコマンドとして起動する。
type Command string

const (
	// CommandServe は契約管理APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れスイープとセッションクリーンアップの
	// ワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションのみを実行して終了することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの/healthエンドポイントを叩いて終了することを示す。
	// curlのないdistrolessイメージでのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// String はサブコマンド名を返す。
func (c Command) String() string { return string(c) }

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 2番目以降の引数は無視する。引数が空またはサポート外のコマンドの場合は
// CommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandWorker:
		return CommandWorker
	case CommandMigrate:
		return CommandMigrate
	case CommandHealthcheck:
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
