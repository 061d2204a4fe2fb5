package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Jatinmanav/StockApp/internal/database"
)

// SystemHandlers serves process and host diagnostics for operational checks
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	db        *database.DB
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		db:        db,
		startedAt: time.Now(),
	}
}

// HandleSystemStatus reports CPU, memory, and data-directory disk usage
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	// Short sample interval to avoid blocking the API call
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		memStat = &mem.VirtualMemoryStat{}
	}

	response := map[string]interface{}{
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":      cpuAvg,
		"memory_percent":   memStat.UsedPercent,
		"memory_used_mb":   memStat.Used / 1024 / 1024,
		"memory_total_mb":  memStat.Total / 1024 / 1024,
		"data_dir":         h.dataDir,
		"database_profile": string(h.db.Profile()),
	}

	if diskStat, err := disk.Usage(h.dataDir); err == nil {
		response["disk_percent"] = diskStat.UsedPercent
		response["disk_free_mb"] = diskStat.Free / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats reports database file and page statistics
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":           h.db.Name(),
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
		"page_count":     stats.PageCount,
		"page_size":      stats.PageSize,
		"freelist_count": stats.FreelistCount,
	})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
