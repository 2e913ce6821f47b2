// Package publish は承認済み生成物のGitHubリポジトリへの公開を提供する。
//
// 公開先はパスをキーとする冪等なアップサートとして扱う。既存ファイルは
// 現行バージョン(SHA)を取得してから更新し、並行編集の上書きを避ける。
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Sink は公開先のインターフェース。
type Sink interface {
	// Publish はリポジトリ上のパスへコンテンツをアップサートする。
	Publish(ctx context.Context, path string, content []byte, message string) error
	// Fetch はリポジトリ上のファイル内容を取得する。存在しない場合はfalseを返す。
	Fetch(ctx context.Context, path string) (string, bool, error)
}

// GitHubSink はGitHub Contents APIによるSinkの実装。
type GitHubSink struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	logger *slog.Logger
}

// NewGitHubSink はGitHubSinkを生成する。repoは "owner/name" 形式。
func NewGitHubSink(repo, token, branch string, logger *slog.Logger) (*GitHubSink, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("公開先リポジトリの形式が不正です (owner/name が必要): %q", repo)
	}
	if token == "" {
		return nil, fmt.Errorf("公開先リポジトリのトークンが設定されていません")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)

	return &GitHubSink{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   name,
		branch: branch,
		logger: logger,
	}, nil
}

// Publish はファイルをアップサートする。
// 既存ファイルのSHAを取得してから更新することで上書き競合を避ける。
func (s *GitHubSink) Publish(ctx context.Context, path string, content []byte, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String(s.branch),
	}

	current, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: s.branch})
	switch {
	case err == nil && current != nil:
		opts.SHA = current.SHA
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		// 新規ファイル。SHAなしで作成する。
	case err != nil:
		return fmt.Errorf("公開先ファイルの確認に失敗しました (%s): %w", path, err)
	}

	if _, _, err := s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, path, opts); err != nil {
		return fmt.Errorf("公開先へのプッシュに失敗しました (%s): %w", path, err)
	}

	s.logger.Info("公開先へプッシュしました",
		slog.String("path", path),
		slog.String("message", message),
	)
	return nil
}

// Fetch はファイル内容を取得する。
func (s *GitHubSink) Fetch(ctx context.Context, path string) (string, bool, error) {
	current, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("公開先ファイルの取得に失敗しました (%s): %w", path, err)
	}
	content, err := current.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("公開先ファイルのデコードに失敗しました (%s): %w", path, err)
	}
	return content, true, nil
}
