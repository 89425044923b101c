package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/structs"
)

type idRequest struct {
	ID string `json:"id"`
}

type nameRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type placeRequest struct {
	AssetID string `json:"assetId"`
	Src     string `json:"src"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
}

type moveRequest struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type tokenRequest struct {
	ID string `json:"id"`
	structs.TokenPatch
}

type fogRequest struct {
	Enabled *bool   `json:"enabled"`
	Data    *string `json:"data"`
}

type pingRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func versionOnly(v int64, err error) (gin.H, error) {
	if err != nil {
		return nil, err
	}
	return gin.H{"version": v}, nil
}

// writeActions maps every POST action to its handler.
func (s *Server) writeActions() map[string]writeFunc {
	m := s.manager
	return map[string]writeFunc{
		"create-scene": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req nameRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			sum, v, err := m.CreateScene(ctx, sid, req.Name)
			if err != nil {
				return nil, err
			}
			return gin.H{"scene": sum, "version": v}, nil
		},
		"delete-scene": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req idRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.DeleteScene(ctx, sid, req.ID))
		},
		"rename-scene": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req nameRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.RenameScene(ctx, sid, req.ID, req.Name))
		},
		"switch-scene": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req idRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			sc, v, err := m.SwitchScene(ctx, sid, req.ID)
			if err != nil {
				return nil, err
			}
			return gin.H{"scene": sc, "version": v}, nil
		},
		"duplicate-scene": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req idRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			sum, v, err := m.DuplicateScene(ctx, sid, req.ID)
			if err != nil {
				return nil, err
			}
			return gin.H{"scene": sum, "version": v}, nil
		},

		"set-background": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var patch structs.BackgroundPatch
			if err := decode(body, &patch); err != nil {
				return nil, err
			}
			bg, v, err := m.SetBackground(ctx, sid, patch)
			if err != nil {
				return nil, err
			}
			return gin.H{"background": bg, "version": v}, nil
		},
		"remove-background": func(ctx context.Context, sid string, _ []byte) (gin.H, error) {
			return versionOnly(m.RemoveBackground(ctx, sid))
		},
		"set-fog": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req fogRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.SetFog(ctx, sid, req.Enabled != nil && *req.Enabled, req.Data))
		},
		"update-fog": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req fogRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.UpdateFog(ctx, sid, req.Data))
		},
		"toggle-fog": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req fogRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			on, v, err := m.ToggleFog(ctx, sid, req.Enabled)
			if err != nil {
				return nil, err
			}
			return gin.H{"enabled": on, "version": v}, nil
		},

		"add-map-element": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req placeRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			el, v, err := m.AddMapElement(ctx, sid, req.AssetID, req.Src, req.X, req.Y)
			if err != nil {
				return nil, err
			}
			return gin.H{"element": el, "version": v}, nil
		},
		"remove-map-element": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req idRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.RemoveMapElement(ctx, sid, req.ID))
		},
		"add-token": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req placeRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			tok, v, err := m.AddToken(ctx, sid, req.AssetID, req.Src, req.X, req.Y)
			if err != nil {
				return nil, err
			}
			return gin.H{"token": tok, "version": v}, nil
		},
		"move-token": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req moveRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.MoveToken(ctx, sid, req.ID, req.X, req.Y))
		},
		"update-token": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req tokenRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			tok, v, err := m.UpdateToken(ctx, sid, req.ID, req.TokenPatch)
			if err != nil {
				return nil, err
			}
			return gin.H{"token": tok, "version": v}, nil
		},
		"remove-token": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req idRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return versionOnly(m.RemoveToken(ctx, sid, req.ID))
		},
		"clear": func(ctx context.Context, sid string, _ []byte) (gin.H, error) {
			return versionOnly(m.ClearScene(ctx, sid))
		},

		"send-ping": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var req pingRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			p, v, err := m.SendPing(ctx, sid, req.X, req.Y)
			if err != nil {
				return nil, err
			}
			return gin.H{"ping": p, "version": v}, nil
		},
		"clear-ping": func(ctx context.Context, sid string, _ []byte) (gin.H, error) {
			return versionOnly(m.ClearPing(ctx, sid))
		},
		"roll": func(ctx context.Context, sid string, body []byte) (gin.H, error) {
			var sub rolls.Submission
			if err := decode(body, &sub); err != nil {
				return nil, err
			}
			rec, v, err := m.AppendRoll(ctx, sid, sub)
			if err != nil {
				return nil, err
			}
			return gin.H{"roll": rec, "version": v}, nil
		},
		"clear-rolls": func(ctx context.Context, sid string, _ []byte) (gin.H, error) {
			return versionOnly(m.ClearRolls(ctx, sid))
		},
	}
}
