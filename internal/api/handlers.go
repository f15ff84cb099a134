package api

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"melody-planner/internal/model"
	"melody-planner/internal/tree"
)

const maxCommandSize = 1 << 20

func (s *Server) handleWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

type workspaceMeta struct {
	Name string `json:"workspaceName"`
	Logo string `json:"workspaceLogo"`
}

func (s *Server) handleUpdateWorkspace(c *gin.Context) {
	var req workspaceMeta
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changed := s.store.UpdateWorkspace(strings.TrimSpace(req.Name), strings.TrimSpace(req.Logo))
	ws := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"changed":       changed,
		"workspaceName": ws.Name,
		"workspaceLogo": ws.Logo,
	})
}

// project resolves :id or writes a 404.
func (s *Server) project(c *gin.Context) (model.Project, bool) {
	p, ok := tree.FindProject(s.store.Projects(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	}
	return p, ok
}

func (s *Server) handleProject(c *gin.Context) {
	if p, ok := s.project(c); ok {
		c.JSON(http.StatusOK, p)
	}
}

// selectedTags accepts ?tags=a,b as well as repeated ?tags=a&tags=b.
func selectedTags(c *gin.Context) []string {
	var out []string
	for _, v := range c.QueryArray("tags") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func (s *Server) handleTasks(c *gin.Context) {
	p, ok := s.project(c)
	if !ok {
		return
	}
	tags := selectedTags(c)
	tasks := tree.FilterByTags(tree.Aggregate(p), tags)
	c.JSON(http.StatusOK, gin.H{
		"projectId": p.ID,
		"tags":      tags,
		"tasks":     tasks,
		"count":     len(tasks),
	})
}

func (s *Server) handleTags(c *gin.Context) {
	if p, ok := s.project(c); ok {
		c.JSON(http.StatusOK, gin.H{"tags": tree.TagIndex(tree.Aggregate(p))})
	}
}

func (s *Server) handleProgress(c *gin.Context) {
	if p, ok := s.project(c); ok {
		c.JSON(http.StatusOK, tree.Progress(tree.Aggregate(p)))
	}
}

func (s *Server) handleBoard(c *gin.Context) {
	if p, ok := s.project(c); ok {
		c.JSON(http.StatusOK, gin.H{"columns": tree.Board(tree.Aggregate(p))})
	}
}

func (s *Server) handleKinds(c *gin.Context) {
	kinds := tree.Kinds()
	sort.Strings(kinds)
	c.JSON(http.StatusOK, gin.H{"kinds": kinds})
}

func (s *Server) handleCommand(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCommandSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := tree.DecodeCommand(body, s.now())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tree.ErrUnknownCommand) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	changed := s.store.Apply(cmd)
	s.logger.Debug("command applied", "kind", cmd.Kind(), "changed", changed)
	c.JSON(http.StatusOK, gin.H{
		"kind":    cmd.Kind(),
		"changed": changed,
		"command": cmd,
	})
}

func (s *Server) handleSync(c *gin.Context) {
	c.JSON(http.StatusOK, s.sync.Status())
}

func (s *Server) handleFlush(c *gin.Context) {
	s.sync.Flush()
	c.JSON(http.StatusOK, s.sync.Status())
}

func (s *Server) handleReminders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"popups": s.inbox.Drain()})
}
