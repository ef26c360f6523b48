package journal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Api serves read-only views of the journal.
func (j *Journal) Api() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		// 最近的同步记录
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		runs, err := j.queryRuns(limit)
		if err != nil {
			j.logger.Error("db error:" + err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		j.writeJSON(w, runs)
	})
	r.Get("/list", func(w http.ResponseWriter, req *http.Request) {
		// 列出某次同步处理过的记录
		type Response struct {
			Run     *Run
			Entries []Entry
		}
		runID := req.URL.Query().Get("run")
		if runID == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("require run param"))
			return
		}
		run, err := j.queryRun(runID)
		if err != nil {
			j.logger.Error("db error:" + err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if run == nil {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("run not found"))
			return
		}
		resp := &Response{Run: run, Entries: []Entry{}}
		entries, err := j.queryEntriesByRun(runID)
		if err != nil {
			j.logger.Error("db error:" + err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.Entries = append(resp.Entries, entries...)
		j.writeJSON(w, resp)
	})
	r.Get("/query", func(w http.ResponseWriter, req *http.Request) {
		// 查询某个名字的记录
		vars := req.URL.Query()
		name, ok := vars["name"]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("require name param"))
			return
		}
		entries, err := j.queryEntries(name[0], vars.Get("zone"))
		if err != nil {
			j.logger.Error("db error:" + err.Error())
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		j.writeJSON(w, entries)
	})
	return r
}

func (j *Journal) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		j.logger.Error("json error:" + err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
