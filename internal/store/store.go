// Package store はスラグをキーとするファイルアドレスの生成物ストアを提供する。
//
// レイアウトは記事スラグごとの固定ファイル名で構成される:
//
//	{slug}.html         本文ドキュメント
//	{slug}_audit.json   監査レポート
//	{slug}_social.json  SNS派生コンテンツ
//	{slug}_card.html    ブログ索引ページ用カード断片
//	{slug}_sitemap.xml  サイトマップエントリ断片
//
// drafts / approved / pregenerated の3ディレクトリで状態を区別する。
// 承認はコピーではなく移動であり、同一スラグの本文が同時に
// 両ストアに存在することはない。
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// 付随生成物のファイル名サフィックス。本文移動・削除時に一緒に処理する。
var companionSuffixes = []string{"_audit.json", "_social.json", "_card.html", "_sitemap.xml"}

// FileStore は生成物のファイルストア。
type FileStore struct {
	draftsDir       string
	approvedDir     string
	pregeneratedDir string
}

// New はFileStoreを生成し、ストアディレクトリを用意する。
func New(draftsDir, approvedDir, pregeneratedDir string) (*FileStore, error) {
	for _, dir := range []string{draftsDir, approvedDir, pregeneratedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ストアディレクトリの作成に失敗しました: %w", err)
		}
	}
	return &FileStore{
		draftsDir:       draftsDir,
		approvedDir:     approvedDir,
		pregeneratedDir: pregeneratedDir,
	}, nil
}

// SaveDraft はドラフト本文を保存する。
func (s *FileStore) SaveDraft(slug, html string) error {
	return s.write(filepath.Join(s.draftsDir, slug+".html"), []byte(html))
}

// LoadDraft はドラフト本文を読み込む。存在しない場合は空文字列とfalseを返す。
func (s *FileStore) LoadDraft(slug string) (string, bool, error) {
	return s.read(filepath.Join(s.draftsDir, slug+".html"))
}

// DraftExists はドラフト本文が存在するかを返す。
func (s *FileStore) DraftExists(slug string) bool {
	_, err := os.Stat(filepath.Join(s.draftsDir, slug+".html"))
	return err == nil
}

// ApprovedExists は承認済み本文が存在するかを返す。
func (s *FileStore) ApprovedExists(slug string) bool {
	_, err := os.Stat(filepath.Join(s.approvedDir, slug+".html"))
	return err == nil
}

// LoadApproved は承認済み本文を読み込む。
func (s *FileStore) LoadApproved(slug string) (string, bool, error) {
	return s.read(filepath.Join(s.approvedDir, slug+".html"))
}

// LoadPregenerated は事前執筆ストアの本文を読み込む。
// 存在する場合、Generateパスは生成サービスを呼ばずにこれを採用する。
func (s *FileStore) LoadPregenerated(slug string) (string, bool, error) {
	return s.read(filepath.Join(s.pregeneratedDir, slug+".html"))
}

// SaveAudit は監査レポートをドラフトストアに保存する。
// 修正後の再監査は同じファイルを上書きする（修正前レポートは保持しない）。
func (s *FileStore) SaveAudit(slug string, audit *model.AuditReport) error {
	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return fmt.Errorf("監査レポートのエンコードに失敗しました: %w", err)
	}
	return s.write(filepath.Join(s.draftsDir, slug+"_audit.json"), data)
}

// LoadAudit は監査レポートを読み込む。存在しない場合はnilを返す。
func (s *FileStore) LoadAudit(slug string) (*model.AuditReport, error) {
	data, ok, err := s.read(filepath.Join(s.draftsDir, slug+"_audit.json"))
	if err != nil || !ok {
		return nil, err
	}
	var audit model.AuditReport
	if err := json.Unmarshal([]byte(data), &audit); err != nil {
		// 壊れたレポートはレビューを止めず、nil扱いにする
		return nil, nil
	}
	return &audit, nil
}

// SaveSocial はSNS派生コンテンツを保存する。
func (s *FileStore) SaveSocial(slug string, social *model.SocialContent) error {
	data, err := json.MarshalIndent(social, "", "  ")
	if err != nil {
		return fmt.Errorf("SNS派生コンテンツのエンコードに失敗しました: %w", err)
	}
	return s.write(filepath.Join(s.draftsDir, slug+"_social.json"), data)
}

// LoadSocial はSNS派生コンテンツを読み込む。存在しない場合はnilを返す。
func (s *FileStore) LoadSocial(slug string) (*model.SocialContent, error) {
	data, ok, err := s.read(filepath.Join(s.draftsDir, slug+"_social.json"))
	if err != nil || !ok {
		return nil, err
	}
	var social model.SocialContent
	if err := json.Unmarshal([]byte(data), &social); err != nil {
		return nil, nil
	}
	return &social, nil
}

// SaveCard はブログ索引用カード断片を保存する。
func (s *FileStore) SaveCard(slug, html string) error {
	return s.write(filepath.Join(s.draftsDir, slug+"_card.html"), []byte(html))
}

// LoadCard はカード断片を読み込む。
func (s *FileStore) LoadCard(slug string) (string, bool, error) {
	return s.read(filepath.Join(s.draftsDir, slug+"_card.html"))
}

// SaveSitemap はサイトマップエントリ断片を保存する。
func (s *FileStore) SaveSitemap(slug, xml string) error {
	return s.write(filepath.Join(s.draftsDir, slug+"_sitemap.xml"), []byte(xml))
}

// LoadSitemap はサイトマップエントリ断片を読み込む。
func (s *FileStore) LoadSitemap(slug string) (string, bool, error) {
	return s.read(filepath.Join(s.draftsDir, slug+"_sitemap.xml"))
}

// Promote はドラフト本文を承認済みストアへ移動し、付随生成物を削除する。
// 承認は移動であり、完了後ドラフトストアに当該スラグの生成物は残らない。
func (s *FileStore) Promote(slug string) error {
	src := filepath.Join(s.draftsDir, slug+".html")
	dst := filepath.Join(s.approvedDir, slug+".html")

	content, ok, err := s.read(src)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewDraftNotFoundError(slug)
	}

	if err := s.write(dst, []byte(content)); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("ドラフト本文の削除に失敗しました: %w", err)
	}
	s.removeCompanions(slug)
	return nil
}

// Discard はドラフトストアから当該スラグの生成物をすべて削除する。
func (s *FileStore) Discard(slug string) {
	os.Remove(filepath.Join(s.draftsDir, slug+".html"))
	s.removeCompanions(slug)
}

// Reset はドラフト・承認済み両ストアから当該スラグの生成物をすべて削除する。
// スロットは再生成可能な状態に戻る。削除したファイルパスの一覧を返す。
func (s *FileStore) Reset(slug string) []string {
	var cleared []string
	names := append([]string{slug + ".html"}, companionFiles(slug)...)
	for _, dir := range []string{s.draftsDir, s.approvedDir} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				if os.Remove(path) == nil {
					cleared = append(cleared, path)
				}
			}
		}
	}
	return cleared
}

// ListDrafts はドラフトストア内の本文スラグ一覧をソートして返す。
// カード断片など付随ファイルは除外する。
func (s *FileStore) ListDrafts() ([]string, error) {
	return listDocuments(s.draftsDir)
}

// ListApproved は承認済みストア内の本文スラグ一覧をソートして返す。
func (s *FileStore) ListApproved() ([]string, error) {
	return listDocuments(s.approvedDir)
}

// Documents はドラフト・承認済み両ストアの全本文を返す。
// ヒーロー画像の使用済み判定のための走査に使う。呼び出しごとに再走査する。
func (s *FileStore) Documents() ([]string, error) {
	var docs []string
	for _, dir := range []string{s.draftsDir, s.approvedDir} {
		slugs, err := listDocuments(dir)
		if err != nil {
			return nil, err
		}
		for _, slug := range slugs {
			content, ok, err := s.read(filepath.Join(dir, slug+".html"))
			if err != nil {
				return nil, err
			}
			if ok {
				docs = append(docs, content)
			}
		}
	}
	return docs, nil
}

func (s *FileStore) removeCompanions(slug string) {
	for _, name := range companionFiles(slug) {
		os.Remove(filepath.Join(s.draftsDir, name))
	}
}

func companionFiles(slug string) []string {
	names := make([]string, len(companionSuffixes))
	for i, suffix := range companionSuffixes {
		names[i] = slug + suffix
	}
	return names
}

func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ストアディレクトリの読み込みに失敗しました: %w", err)
	}

	var slugs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		slug := strings.TrimSuffix(name, ".html")
		if strings.HasSuffix(slug, "_card") {
			continue
		}
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs, nil
}

func (s *FileStore) write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("生成物の書き込みに失敗しました: %w", err)
	}
	return nil
}

func (s *FileStore) read(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("生成物の読み込みに失敗しました: %w", err)
	}
	return string(data), true, nil
}
