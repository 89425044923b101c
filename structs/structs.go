package structs

// Position 描述地图网格上的一个格子坐标。
type Position struct {
	X int `json:"x"` // 列
	Y int `json:"y"` // 行
}

// Token 描述场景上放置的一个角色标记。
type Token struct {
	ID         string   `json:"id"`                   // 服务端分配的唯一标识
	AssetID    string   `json:"assetId"`              // 资源标识
	Src        string   `json:"src"`                  // 图片地址
	X          int      `json:"x"`                    // 列
	Y          int      `json:"y"`                    // 行
	Size       *float64 `json:"size,omitempty"`       // 缩放倍数，缺省为 1
	UpperLabel *string  `json:"upperLabel,omitempty"` // 上方标签
	LowerLabel *string  `json:"lowerLabel,omitempty"` // 下方标签
}

// At reports whether the token sits on cell (x, y).
func (t Token) At(x, y int) bool { return t.X == x && t.Y == y }

// MapElement 描述场景上放置的一个地图元素（墙、门、家具等）。
type MapElement struct {
	ID      string `json:"id"`
	AssetID string `json:"assetId"`
	Src     string `json:"src"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

// At reports whether the element sits on cell (x, y).
func (e MapElement) At(x, y int) bool { return e.X == x && e.Y == y }

// FogOfWar 描述场景的战争迷雾。Enabled 为 false 时保留 Data，重新开启即可恢复。
type FogOfWar struct {
	Enabled bool    `json:"enabled"`
	Data    *string `json:"data"` // base64 编码的位图，nil 表示全部遮蔽
}

// Background 描述场景背景图及其对齐参数。
type Background struct {
	Src     string  `json:"src"`
	Name    string  `json:"name"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	OffsetX int     `json:"offsetX"` // 像素偏移
	OffsetY int     `json:"offsetY"` // 像素偏移
	Scale   float64 `json:"scale"`   // 正数，缺省 1.0
}

// BackgroundPatch carries a set-background request. Nil offsets and scale
// fall back to the previous background's values.
type BackgroundPatch struct {
	Src     string   `json:"src"`
	Name    string   `json:"name"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	OffsetX *int     `json:"offsetX,omitempty"`
	OffsetY *int     `json:"offsetY,omitempty"`
	Scale   *float64 `json:"scale,omitempty"`
}

// TokenPatch carries a partial token update; nil fields are left unchanged.
type TokenPatch struct {
	Size       *float64 `json:"size,omitempty"`
	UpperLabel *string  `json:"upperLabel,omitempty"`
	LowerLabel *string  `json:"lowerLabel,omitempty"`
}

// Scene 描述一个场景（一张地图或一场遭遇）。
type Scene struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Background  *Background  `json:"background"`
	FogOfWar    FogOfWar     `json:"fogOfWar"`
	MapElements []MapElement `json:"mapElements"`
	Tokens      []Token      `json:"tokens"`
}

// SceneSummary is the id/name pair exposed for inactive scenes.
type SceneSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Summary returns the scene's id and name.
func (s *Scene) Summary() SceneSummary {
	return SceneSummary{ID: s.ID, Name: s.Name}
}

// Ping 是全局唯一的"看这里"信号，时间戳由服务端写入（毫秒）。
type Ping struct {
	X         int   `json:"x"`
	Y         int   `json:"y"`
	Timestamp int64 `json:"timestamp"`
}

// Document 描述一个会话的完整共享状态。
type Document struct {
	ActiveSceneID string  `json:"activeSceneId"`
	Scenes        []Scene `json:"scenes"`
	Version       int64   `json:"version"`    // 每次成功修改加一
	LastUpdate    int64   `json:"lastUpdate"` // 最后修改时间，秒级时间戳
	Ping          *Ping   `json:"ping"`
}

// Snapshot is the read view served to polling clients: summaries for every
// scene and the active scene in full.
type Snapshot struct {
	ActiveSceneID string         `json:"activeSceneId"`
	Scenes        []SceneSummary `json:"scenes"`
	Scene         *Scene         `json:"scene"`
	Version       int64          `json:"version"`
}

// CheckResult answers a version check. Data is set only when HasChanges is.
type CheckResult struct {
	HasChanges bool      `json:"hasChanges"`
	Version    int64     `json:"version"`
	Data       *Snapshot `json:"data,omitempty"`
}
