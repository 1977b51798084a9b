package http

import (
	"net/http"
	"strconv"

	"feeledger/internal/core"
	"feeledger/internal/storage"
)

type createClassRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, r, core.NewValidationError("name", "required"))
		return
	}
	created, err := s.repo.CreateClass(r.Context(), core.Class{Name: req.Name})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.repo.ListClasses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": classes})
}

type createStudentRequest struct {
	FullName string `json:"full_name"`
	ClassID  int64  `json:"class_id"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	student := core.Student{FullName: req.FullName, ClassID: req.ClassID}
	if err := student.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.repo.GetClass(r.Context(), req.ClassID); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repo.CreateStudent(r.Context(), student)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	classID, err := queryID(r, "class_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	students, err := s.repo.ListStudents(r.Context(), classID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

type createFeeTypeRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s *Server) handleCreateFeeType(w http.ResponseWriter, r *http.Request) {
	var req createFeeTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	feeType := core.FeeType{Name: req.Name, Code: req.Code, Description: req.Description}
	if err := feeType.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repo.CreateFeeType(r.Context(), feeType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListFeeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.repo.ListFeeTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fee_types": types})
}

type createFeeGroupRequest struct {
	Name      string     `json:"name"`
	ClassID   int64      `json:"class_id"`
	FeeTypeID int64      `json:"fee_type_id"`
	Amount    core.Money `json:"amount"`
	DueDate   core.Date  `json:"due_date"`
}

func (s *Server) handleCreateFeeGroup(w http.ResponseWriter, r *http.Request) {
	var req createFeeGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	group := core.FeeGroup{
		Name:      req.Name,
		ClassID:   req.ClassID,
		FeeTypeID: req.FeeTypeID,
		Amount:    req.Amount,
		DueDate:   req.DueDate,
	}
	if err := group.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.repo.GetClass(r.Context(), req.ClassID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.repo.GetFeeType(r.Context(), req.FeeTypeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repo.CreateFeeGroup(r.Context(), group)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListFeeGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.repo.ListFeeGroups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fee_groups": groups})
}

type createAllocationRequest struct {
	StudentID  int64       `json:"student_id"`
	FeeGroupID int64       `json:"fee_group_id"`
	Amount     *core.Money `json:"amount"`
	DueDate    *core.Date  `json:"due_date"`
}

// handleCreateAllocation bills one student from a fee group. Amount and due
// date default to the group's values; either can be overridden for
// scholarships or extensions.
func (s *Server) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var req createAllocationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.StudentID <= 0 {
		s.writeError(w, r, core.NewValidationError("student_id", "required"))
		return
	}
	if req.FeeGroupID <= 0 {
		s.writeError(w, r, core.NewValidationError("fee_group_id", "required"))
		return
	}
	if _, err := s.repo.GetStudent(r.Context(), req.StudentID); err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := s.repo.GetFeeGroup(r.Context(), req.FeeGroupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	alloc := core.FeeAllocation{
		StudentID:  req.StudentID,
		FeeGroupID: group.ID,
		Amount:     group.Amount,
		DueDate:    group.DueDate,
	}
	if req.Amount != nil {
		alloc.Amount = *req.Amount
	}
	if req.DueDate != nil {
		alloc.DueDate = *req.DueDate
	}
	if err := alloc.Amount.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := alloc.DueDate.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.repo.CreateAllocation(r.Context(), alloc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "student_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	classID, err := queryID(r, "class_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := core.AllocationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		s.writeError(w, r, core.NewValidationError("status", "must be unpaid, partial or paid"))
		return
	}

	allocations, err := s.repo.ListAllocations(r.Context(), storage.AllocationFilter{
		StudentID: studentID,
		ClassID:   classID,
		Status:    status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allocations": allocations})
}

func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alloc, err := s.repo.GetAllocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

// queryID parses an optional positive integer query parameter; absent means
// zero.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
