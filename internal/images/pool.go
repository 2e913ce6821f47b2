// Package images はヒーロー画像プールとローテーション選択を提供する。
package images

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/satoshiledger/ArticleAutomation/internal/model"
)

// poolFile は画像プール定義ファイルの構造。
type poolFile struct {
	Images []model.HeroImage `yaml:"images"`
}

// LoadPool はYAMLの画像プール定義を読み込む。
// プール内の順序は選択の決定性に関わるため、定義順をそのまま保持する。
func LoadPool(path string) ([]model.HeroImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("画像プール定義の読み込みに失敗しました: %w", err)
	}
	return ParsePool(data)
}

// ParsePool はYAMLバイト列から画像プールを構築する。
func ParsePool(data []byte) ([]model.HeroImage, error) {
	var file poolFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("画像プール定義のパースに失敗しました: %w", err)
	}
	if len(file.Images) == 0 {
		return nil, fmt.Errorf("画像プールが空です")
	}

	seen := make(map[string]bool, len(file.Images))
	for _, img := range file.Images {
		if img.ID == "" || img.URL == "" {
			return nil, fmt.Errorf("画像プールのエントリにidまたはurlがありません")
		}
		if seen[img.ID] {
			return nil, fmt.Errorf("画像IDが重複しています: %q", img.ID)
		}
		seen[img.ID] = true
	}
	return file.Images, nil
}
