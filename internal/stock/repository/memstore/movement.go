package memstore

import (
	"context"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// ImportStore is the in-memory import table
type ImportStore struct {
	s *Store
}

func (i *ImportStore) Create(ctx context.Context, imp *domain.Import) error {
	return i.s.do(ctx, func(st *state) error {
		if _, ok := st.suppliers[imp.SupplierID]; !ok {
			return errors.BadRequest("referenced record does not exist")
		}
		for _, existing := range st.imports {
			if existing.ReferenceNumber == imp.ReferenceNumber {
				return errors.DuplicateReference()
			}
		}
		stored := *imp
		stored.Batches = nil
		st.imports[imp.ID] = &stored
		return nil
	})
}

func (i *ImportStore) GetByID(ctx context.Context, id string) (*domain.Import, error) {
	var out *domain.Import
	err := i.s.do(ctx, func(st *state) error {
		found, ok := st.imports[id]
		if !ok {
			return errors.NotFound("import")
		}
		c := *found
		out = &c
		return nil
	})
	return out, err
}

func (i *ImportStore) List(ctx context.Context, filter domain.ImportFilter, page, perPage int) ([]*domain.Import, int64, error) {
	matched := []*domain.Import{}
	_ = i.s.do(ctx, func(st *state) error {
		for _, imp := range st.imports {
			if filter.Matches(imp) {
				c := *imp
				matched = append(matched, &c)
			}
		}
		return nil
	})
	sortedByCreated(matched, func(a, b *domain.Import) bool {
		if !a.ImportDate.Equal(b.ImportDate) {
			return a.ImportDate.After(b.ImportDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return paginate(matched, page, perPage), int64(len(matched)), nil
}

func (i *ImportStore) NextSequence(ctx context.Context, prefix string) (int, error) {
	var refs []string
	_ = i.s.do(ctx, func(st *state) error {
		for _, imp := range st.imports {
			refs = append(refs, imp.ReferenceNumber)
		}
		return nil
	})
	return domain.NextReferenceSequence(prefix, refs), nil
}

// ExportStore is the in-memory export table
type ExportStore struct {
	s *Store
}

func (e *ExportStore) Create(ctx context.Context, exp *domain.Export) error {
	return e.s.do(ctx, func(st *state) error {
		for _, existing := range st.exports {
			if existing.ReferenceNumber == exp.ReferenceNumber {
				return errors.DuplicateReference()
			}
		}
		for _, item := range exp.Items {
			if _, ok := st.batches[item.BatchID]; !ok {
				return errors.BadRequest("referenced record does not exist")
			}
		}
		st.exports[exp.ID] = cloneExport(exp)
		return nil
	})
}

func (e *ExportStore) GetByID(ctx context.Context, id string) (*domain.Export, error) {
	var out *domain.Export
	err := e.s.do(ctx, func(st *state) error {
		found, ok := st.exports[id]
		if !ok {
			return errors.NotFound("export")
		}
		out = cloneExport(found)
		return nil
	})
	return out, err
}

func (e *ExportStore) List(ctx context.Context, filter domain.ExportFilter, page, perPage int) ([]*domain.Export, int64, error) {
	matched := []*domain.Export{}
	_ = e.s.do(ctx, func(st *state) error {
		for _, exp := range st.exports {
			if filter.Matches(exp) {
				matched = append(matched, cloneExport(exp))
			}
		}
		return nil
	})
	sortedByCreated(matched, func(a, b *domain.Export) bool {
		if !a.ExportDate.Equal(b.ExportDate) {
			return a.ExportDate.After(b.ExportDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return paginate(matched, page, perPage), int64(len(matched)), nil
}

func (e *ExportStore) NextSequence(ctx context.Context, prefix string) (int, error) {
	var refs []string
	_ = e.s.do(ctx, func(st *state) error {
		for _, exp := range st.exports {
			refs = append(refs, exp.ReferenceNumber)
		}
		return nil
	})
	return domain.NextReferenceSequence(prefix, refs), nil
}

func cloneExport(exp *domain.Export) *domain.Export {
	c := *exp
	c.Items = make([]*domain.ExportItem, len(exp.Items))
	for i, item := range exp.Items {
		ic := *item
		c.Items[i] = &ic
	}
	return &c
}
