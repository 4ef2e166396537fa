package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yesterday-dev/yesterday/internal/archives"
	"github.com/yesterday-dev/yesterday/internal/models"
	"github.com/yesterday-dev/yesterday/internal/restore"
)

// @Summary List backups
// @Description List backup archives in the bucket, newest first
// @Tags backups
// @Produce json
// @Param refresh query bool false "Bypass the inventory cache"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/backups [get]
func (s *Server) listBackups(c *gin.Context) {
	force := c.Query("refresh") == "true"

	backups, err := s.deps.Catalog.List(c.Request.Context(), force)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list backups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	loaded, err := s.deps.Containers.Loaded(c.Request.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to check loaded backups, reporting none as loaded")
	}
	loadedSet := make(map[string]struct{}, len(loaded))
	for _, id := range loaded {
		loadedSet[id] = struct{}{}
	}

	if backups == nil {
		backups = []models.Archive{}
	}
	for i := range backups {
		_, backups[i].Loaded = loadedSet[backups[i].BackupID]
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": backups,
		"total":   len(backups),
	})
}

// @Summary Load backup
// @Description Start restoring a backup in the background
// @Tags backups
// @Produce json
// @Param id path string true "Backup identifier (YYYYMMDD)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/backups/{id}/load [post]
func (s *Server) loadBackup(c *gin.Context) {
	backupID, ok := s.backupIDParam(c)
	if !ok {
		return
	}

	job, err := s.deps.Restorer.Start(c.Request.Context(), backupID)
	if err != nil {
		var conflict *restore.ConflictError
		if errors.As(err, &conflict) {
			body := gin.H{
				"error":  conflict.Reason,
				"status": conflict.Status,
			}
			if conflict.Progress != nil {
				body["progress"] = *conflict.Progress
			}
			s.logger.Info().Str("backup_id", backupID).Str("reason", conflict.Reason).Msg("Load request rejected")
			c.JSON(http.StatusConflict, body)
			return
		}

		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("Failed to start restoration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start restoration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Started loading backup %s", backupID),
		"status":  job.Status,
	})
}

// @Summary Restoration progress
// @Description Get the latest restoration job for a backup
// @Tags backups
// @Produce json
// @Param id path string true "Backup identifier (YYYYMMDD)"
// @Success 200 {object} restore.Job
// @Failure 404 {object} map[string]interface{}
// @Router /api/backups/{id}/progress [get]
func (s *Server) getProgress(c *gin.Context) {
	backupID, ok := s.backupIDParam(c)
	if !ok {
		return
	}

	job, err := s.deps.Restorer.Progress(backupID)
	if err != nil {
		if errors.Is(err, restore.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No restoration job found for this backup"})
			return
		}
		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("Failed to read progress")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// @Summary Unload backup
// @Description Stop the containers of a restored backup
// @Tags backups
// @Produce json
// @Param id path string true "Backup identifier (YYYYMMDD)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/backups/{id}/unload [post]
func (s *Server) unloadBackup(c *gin.Context) {
	backupID, ok := s.backupIDParam(c)
	if !ok {
		return
	}

	if err := s.deps.Containers.Unload(c.Request.Context(), backupID); err != nil {
		s.logger.Error().Err(err).Str("backup_id", backupID).Msg("Failed to unload backup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to unload backup: %v", err)})
		return
	}

	s.logger.Info().Str("backup_id", backupID).Msg("Backup unloaded")
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Unloaded backup %s", backupID),
		"status":  "stopped",
	})
}

// @Summary List loaded backups
// @Description List backups whose containers are running, newest first
// @Tags backups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/backups/loaded [get]
func (s *Server) listLoadedBackups(c *gin.Context) {
	loaded, err := s.deps.Containers.Loaded(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list loaded backups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if loaded == nil {
		loaded = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"loaded": loaded,
		"total":  len(loaded),
	})
}

// @Summary List restorations
// @Description List the latest restoration job of every backup seen since startup
// @Tags backups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/restorations [get]
func (s *Server) listRestorations(c *gin.Context) {
	jobs := s.deps.Restorer.Jobs()
	c.JSON(http.StatusOK, gin.H{
		"restorations": jobs,
		"total":        len(jobs),
	})
}

// @Summary Current backup
// @Description Information about the backup the restore script last loaded
// @Tags backups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/current-backup [get]
func (s *Server) getCurrentBackup(c *gin.Context) {
	state, err := archives.ReadCurrentBackup(s.config.Restore.CurrentBackupFile)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.config.Restore.CurrentBackupFile).Msg("Failed to read current backup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if state == nil {
		c.JSON(http.StatusOK, gin.H{"date": nil, "message": "No backup currently loaded"})
		return
	}

	c.JSON(http.StatusOK, state)
}
