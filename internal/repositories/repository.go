package repositories

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/cache"
	"github.com/concord-im/concord/internal/query"
	"github.com/concord-im/concord/internal/storage"
	logger "github.com/concord-im/concord/middleware/log"
)

// Query bundles the composable inputs of a list read.
type Query struct {
	Filter   query.Filter
	Order    []query.Order
	Page     query.Page
	Distinct []string
	Project  query.Projection
}

// AggregateSpec names the summaries an Aggregate or GroupBy computes.
type AggregateSpec struct {
	Count bool
	Min   []string
	Max   []string
}

// AggregateResult carries the computed summaries. Min and Max are keyed by
// column name.
type AggregateResult struct {
	Count int64
	Min   map[string]any
	Max   map[string]any
}

// GroupBySpec describes a grouped summarization. Every column referenced
// by Having or Order must appear in By (or be the count aggregate).
type GroupBySpec struct {
	By     []string
	Filter query.Filter
	Having query.Filter
	Order  []query.Order
	Agg    AggregateSpec
}

// txJournal collects the cache invalidations of one transaction. While a
// journal is attached the cache is neither read nor written: uncommitted
// rows must not leak into shared state, and a rollback must leave the
// cache untouched. The bundle flushes the journal after commit.
type txJournal struct {
	tables   map[string]bool
	entities []entityRef
}

type entityRef struct {
	table string
	id    string
}

func newTxJournal() *txJournal {
	return &txJournal{tables: make(map[string]bool)}
}

func (j *txJournal) record(table string, ids ...string) {
	j.tables[table] = true
	for _, id := range ids {
		j.entities = append(j.entities, entityRef{table: table, id: id})
	}
}

// base 通用仓储，按实体嵌入
type base[T any] struct {
	db      *gorm.DB
	log     *logger.Logger
	schema  *query.Schema
	cache   *cache.Cache     // nil 表示未启用缓存
	omit    query.Projection // 全局列裁剪，零值保留全部列
	fields  map[string]int   // column -> struct field index
	journal *txJournal       // 事务内缓存失效记录，nil 表示不在事务中
}

func newBase[T any](db *gorm.DB, log *logger.Logger, schema *query.Schema, c *cache.Cache, omit query.Projection, j *txJournal) base[T] {
	return base[T]{
		db:      db,
		log:     log,
		schema:  schema,
		cache:   c,
		omit:    omit,
		fields:  columnFields[T](schema),
		journal: j,
	}
}

// cacheable reports whether the shared cache may serve this repository:
// configured, and not inside a transaction.
func (r *base[T]) cacheable() bool {
	return r.cache != nil && r.journal == nil
}

// withDB rebinds the repository to another gorm handle, typically a
// transaction.
func (r base[T]) withDB(db *gorm.DB) base[T] {
	r.db = db
	return r
}

func (r *base[T]) session(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// ---- reads ----

// FindUnique looks a row up by primary key. Absence is (nil, nil), not an
// error.
func (r *base[T]) FindUnique(ctx context.Context, id string) (*T, error) {
	if r.cacheable() {
		var out T
		if r.cache.GetEntity(ctx, r.schema.Table, id, &out) {
			return &out, nil
		}
	}

	db := r.session(ctx)
	if cols := r.readColumns(query.Projection{}); cols != nil {
		db = db.Select(cols)
	}
	var out T
	err := db.Where(r.schema.PK+" = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Translate(err)
	}
	if r.cacheable() {
		r.cache.SetEntity(ctx, r.schema.Table, id, out)
	}
	return &out, nil
}

// GetUnique is the throwing form of FindUnique: absence is ErrNotFound.
func (r *base[T]) GetUnique(ctx context.Context, id string) (*T, error) {
	out, err := r.FindUnique(ctx, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s %q", storage.ErrNotFound, r.schema.Table, id)
	}
	return out, nil
}

// FindFirst returns the first row matching the query, or (nil, nil).
func (r *base[T]) FindFirst(ctx context.Context, q Query) (*T, error) {
	q.Page.Limit = 1
	items, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindMany returns every row matching the query, list-cached when a cache
// is configured.
func (r *base[T]) FindMany(ctx context.Context, q Query) ([]T, error) {
	p, err := r.plan(q)
	if err != nil {
		return nil, err
	}

	var key string
	if r.cacheable() {
		ver := r.cache.TableVersion(ctx, r.schema.Table)
		key = cache.QueryKey(r.schema.Table, ver, p.fingerprint(), p.allArgs())
		var cached []T
		if r.cache.GetQuery(ctx, key, &cached) {
			return cached, nil
		}
	}

	out, err := r.run(ctx, p)
	if err != nil {
		return nil, err
	}
	if r.cacheable() {
		r.cache.SetQuery(ctx, key, out)
	}
	return out, nil
}

// find is FindMany without the list cache.
func (r *base[T]) find(ctx context.Context, q Query) ([]T, error) {
	p, err := r.plan(q)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, p)
}

// FindPage returns one page plus a cursor for the next. The query must be
// ordered on at most one column; unordered pages sort on the primary key.
func (r *base[T]) FindPage(ctx context.Context, q Query) ([]T, query.PageInfo, error) {
	if len(q.Order) == 0 {
		q.Order = []query.Order{query.Asc(r.schema.PK)}
	}
	if len(q.Order) != 1 {
		return nil, query.PageInfo{}, &query.ValidationError{Reason: "cursor pagination requires exactly one order column"}
	}

	limit := q.Page.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}

	probe := q
	probe.Page.Limit = limit + 1
	items, err := r.FindMany(ctx, probe)
	if err != nil {
		return nil, query.PageInfo{}, err
	}

	info := query.PageInfo{Limit: limit, HasMore: len(items) > limit}
	if info.HasMore {
		items = items[:limit]
	}
	if info.HasMore && len(items) > 0 {
		last := &items[len(items)-1]
		cur := query.Cursor{
			OrderValue: r.columnValue(last, q.Order[0].Field),
			PK:         r.pkOf(last),
		}
		token, err := cur.Encode()
		if err != nil {
			return nil, query.PageInfo{}, fmt.Errorf("encode cursor: %w", err)
		}
		info.NextCursor = token
	}
	return items, info, nil
}

// Count returns the number of rows matching the filter.
func (r *base[T]) Count(ctx context.Context, filter query.Filter) (int64, error) {
	cond, args, err := filter.Compile(r.schema)
	if err != nil {
		return 0, err
	}
	db := r.session(ctx).Model(new(T))
	if cond != "" {
		db = db.Where(cond, args...)
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, storage.Translate(err)
	}
	return n, nil
}

// Aggregate computes count/min/max summaries over the matching rows.
func (r *base[T]) Aggregate(ctx context.Context, filter query.Filter, agg AggregateSpec) (AggregateResult, error) {
	selects, err := r.aggregateSelects(agg)
	if err != nil {
		return AggregateResult{}, err
	}
	if len(selects) == 0 {
		return AggregateResult{}, &query.ValidationError{Reason: "aggregate requires at least one of count, min, max"}
	}

	cond, args, err := filter.Compile(r.schema)
	if err != nil {
		return AggregateResult{}, err
	}

	db := r.session(ctx).Model(new(T)).Select(strings.Join(selects, ", "))
	if cond != "" {
		db = db.Where(cond, args...)
	}
	row := map[string]any{}
	if err := db.Take(&row).Error; err != nil {
		return AggregateResult{}, storage.Translate(err)
	}
	return collectAggregates(row, agg), nil
}

// GroupBy partitions the matching rows by the By columns and computes the
// requested aggregates per partition. Having and Order may reference only
// grouped columns, or "count" when the count aggregate is requested.
func (r *base[T]) GroupBy(ctx context.Context, spec GroupBySpec) ([]map[string]any, error) {
	if len(spec.By) == 0 {
		return nil, &query.ValidationError{Reason: "groupBy requires at least one grouping column"}
	}
	if err := r.schema.CheckColumns(spec.By); err != nil {
		return nil, err
	}

	grouped := make(map[string]bool, len(spec.By)+1)
	for _, c := range spec.By {
		grouped[c] = true
	}
	aliases := map[string]bool{}
	if spec.Agg.Count {
		aliases["count"] = true
	}

	for _, f := range spec.Having.Fields() {
		if !grouped[f] {
			return nil, &query.ValidationError{Field: f, Reason: "having references a column missing from the grouping key"}
		}
	}
	for _, o := range spec.Order {
		if !grouped[o.Field] && !aliases[o.Field] {
			return nil, &query.ValidationError{Field: o.Field, Reason: "order references a column missing from the grouping key"}
		}
	}

	selects, err := r.aggregateSelects(spec.Agg)
	if err != nil {
		return nil, err
	}
	selects = append(append([]string{}, spec.By...), selects...)

	cond, args, err := spec.Filter.Compile(r.schema)
	if err != nil {
		return nil, err
	}
	having, havingArgs, err := spec.Having.Compile(r.schema)
	if err != nil {
		return nil, err
	}

	db := r.session(ctx).Model(new(T)).
		Select(strings.Join(selects, ", ")).
		Group(strings.Join(spec.By, ", "))
	if cond != "" {
		db = db.Where(cond, args...)
	}
	if having != "" {
		db = db.Having(having, havingArgs...)
	}
	if len(spec.Order) > 0 {
		parts := make([]string, 0, len(spec.Order))
		for _, o := range spec.Order {
			dir := " ASC"
			if o.Desc {
				dir = " DESC"
			}
			parts = append(parts, o.Field+dir)
		}
		db = db.Order(strings.Join(parts, ", "))
	}

	var rows []map[string]any
	if err := db.Find(&rows).Error; err != nil {
		return nil, storage.Translate(err)
	}
	return rows, nil
}

// FindRaw runs SELECT * with a caller-written condition, bypassing the
// typed filter layer.
func (r *base[T]) FindRaw(ctx context.Context, cond string, args ...any) ([]map[string]any, error) {
	var rows []map[string]any
	sql := "SELECT * FROM " + r.schema.Table
	if cond != "" {
		sql += " WHERE " + cond
	}
	if err := r.session(ctx).Raw(sql, args...).Find(&rows).Error; err != nil {
		return nil, storage.Translate(err)
	}
	return rows, nil
}

// ---- writes ----

// Create inserts one row, filling the primary key and timestamps.
func (r *base[T]) Create(ctx context.Context, data *T) error {
	if err := r.session(ctx).Create(data).Error; err != nil {
		return storage.Translate(err)
	}
	r.invalidate(ctx)
	return nil
}

// CreateMany inserts a batch and returns the inserted count.
func (r *base[T]) CreateMany(ctx context.Context, data []T) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	res := r.session(ctx).Create(&data)
	if res.Error != nil {
		return 0, storage.Translate(res.Error)
	}
	r.invalidate(ctx)
	return res.RowsAffected, nil
}

// UpdateByPK patches one row and returns its new state. ErrNotFound when
// the key resolves to nothing.
func (r *base[T]) UpdateByPK(ctx context.Context, id string, patch map[string]any) (*T, error) {
	if err := r.checkPatch(patch); err != nil {
		return nil, err
	}

	var out T
	err := r.session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(r.schema.PK+" = ?", id).First(&out).Error; err != nil {
			return err
		}
		if len(patch) > 0 {
			if err := tx.Model(&out).Updates(patch).Error; err != nil {
				return err
			}
		}
		return tx.Where(r.schema.PK+" = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, storage.Translate(err)
	}
	r.invalidate(ctx, id)
	return &out, nil
}

// UpdateMany patches every matching row and returns the affected count.
// Zero matches is not an error. A positive limit bounds the update through
// a keyed subquery, since Postgres has no UPDATE ... LIMIT.
func (r *base[T]) UpdateMany(ctx context.Context, filter query.Filter, patch map[string]any, limit int) (int64, error) {
	if err := r.checkPatch(patch); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, nil
	}

	db, err := r.bulkTarget(ctx, filter, limit)
	if err != nil {
		return 0, err
	}
	res := db.Updates(patch)
	if res.Error != nil {
		return 0, storage.Translate(res.Error)
	}
	r.invalidate(ctx)
	return res.RowsAffected, nil
}

// upsert updates the row matched by cond, or inserts create when no row
// matches, inside one transaction.
func (r *base[T]) upsert(ctx context.Context, cond string, condArgs []any, create T, patch map[string]any) (*T, error) {
	if err := r.checkPatch(patch); err != nil {
		return nil, err
	}

	var out T
	err := r.session(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(cond, condArgs...).First(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = create
			return tx.Create(&out).Error
		}
		if err != nil {
			return err
		}
		if len(patch) > 0 {
			if err := tx.Model(&out).Updates(patch).Error; err != nil {
				return err
			}
		}
		return tx.Where(r.schema.PK+" = ?", r.pkOf(&out)).First(&out).Error
	})
	if err != nil {
		return nil, storage.Translate(err)
	}
	r.invalidate(ctx, r.pkOf(&out))
	return &out, nil
}

// UpsertByPK is upsert keyed on the primary key.
func (r *base[T]) UpsertByPK(ctx context.Context, id string, create T, patch map[string]any) (*T, error) {
	return r.upsert(ctx, r.schema.PK+" = ?", []any{id}, create, patch)
}

// DeleteByPK removes one row and returns its prior state. ErrNotFound when
// the key resolves to nothing.
func (r *base[T]) DeleteByPK(ctx context.Context, id string) (*T, error) {
	var out T
	err := r.session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(r.schema.PK+" = ?", id).First(&out).Error; err != nil {
			return err
		}
		return tx.Delete(&out).Error
	})
	if err != nil {
		return nil, storage.Translate(err)
	}
	r.invalidate(ctx, id)
	return &out, nil
}

// DeleteMany removes every matching row and returns the removed count. A
// positive limit bounds the delete through a keyed subquery.
func (r *base[T]) DeleteMany(ctx context.Context, filter query.Filter, limit int) (int64, error) {
	db, err := r.bulkTarget(ctx, filter, limit)
	if err != nil {
		return 0, err
	}
	res := db.Delete(new(T))
	if res.Error != nil {
		return 0, storage.Translate(res.Error)
	}
	r.invalidate(ctx)
	return res.RowsAffected, nil
}

// ---- internals ----

// clauseExpr is one compiled WHERE fragment.
type clauseExpr struct {
	sql  string
	args []any
}

// plan is a fully validated, compiled list query.
type plan struct {
	where    []clauseExpr
	order    string
	limit    int
	offset   int
	distinct []string
	cols     []string
}

func (r *base[T]) plan(q Query) (plan, error) {
	p := plan{limit: q.Page.Limit, offset: q.Page.Offset}

	cond, args, err := q.Filter.Compile(r.schema)
	if err != nil {
		return plan{}, err
	}
	if cond != "" {
		p.where = append(p.where, clauseExpr{cond, args})
	}

	p.order, err = query.CompileOrder(r.schema, q.Order)
	if err != nil {
		return plan{}, err
	}

	cur, err := query.DecodeCursor(q.Page.After)
	if err != nil {
		return plan{}, err
	}
	if cur != nil {
		kcond, kargs, err := query.KeysetCondition(r.schema, q.Order, cur)
		if err != nil {
			return plan{}, err
		}
		p.where = append(p.where, clauseExpr{kcond, kargs})
	}

	if len(q.Distinct) > 0 {
		if err := r.schema.CheckColumns(q.Distinct); err != nil {
			return plan{}, err
		}
		p.distinct = q.Distinct
	}

	p.cols = r.readColumns(q.Project)
	return p, nil
}

// fingerprint is a stable textual form of the plan, used for cache keys.
func (p plan) fingerprint() string {
	var sb strings.Builder
	for _, w := range p.where {
		sb.WriteString(w.sql)
		sb.WriteString(";")
	}
	fmt.Fprintf(&sb, "o=%s;l=%d;f=%d;d=%s;c=%s",
		p.order, p.limit, p.offset,
		strings.Join(p.distinct, ","), strings.Join(p.cols, ","))
	return sb.String()
}

func (p plan) allArgs() []any {
	var args []any
	for _, w := range p.where {
		args = append(args, w.args...)
	}
	return args
}

func (r *base[T]) run(ctx context.Context, p plan) ([]T, error) {
	db := r.session(ctx).Model(new(T))
	for _, w := range p.where {
		db = db.Where(w.sql, w.args...)
	}

	order := p.order
	if len(p.distinct) > 0 {
		// DISTINCT ON requires the ordering to lead with the distinct
		// columns.
		sel := "*"
		if len(p.cols) > 0 {
			sel = strings.Join(p.cols, ", ")
		}
		db = db.Select(fmt.Sprintf("DISTINCT ON (%s) %s", strings.Join(p.distinct, ", "), sel))
		prefix := strings.Join(p.distinct, ", ")
		if order != "" {
			order = prefix + ", " + order
		} else {
			order = prefix
		}
	} else if len(p.cols) > 0 {
		db = db.Select(p.cols)
	}

	if order != "" {
		db = db.Order(order)
	}
	if p.limit > 0 {
		db = db.Limit(p.limit)
	}
	if p.offset > 0 {
		db = db.Offset(p.offset)
	}

	var out []T
	if err := db.Find(&out).Error; err != nil {
		return nil, storage.Translate(err)
	}
	return out, nil
}

// bulkTarget builds the write target for UpdateMany/DeleteMany, applying
// the optional limit via a primary-key subquery.
func (r *base[T]) bulkTarget(ctx context.Context, filter query.Filter, limit int) (*gorm.DB, error) {
	cond, args, err := filter.Compile(r.schema)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, &query.ValidationError{Reason: "limit must not be negative"}
	}

	db := r.session(ctx).Model(new(T))
	if limit > 0 {
		sub := r.session(ctx).Model(new(T)).Select(r.schema.PK).Limit(limit)
		if cond != "" {
			sub = sub.Where(cond, args...)
		}
		return db.Where(r.schema.PK+" IN (?)", sub), nil
	}
	if cond != "" {
		db = db.Where(cond, args...)
	}
	return db, nil
}

// readColumns resolves the effective projection: the per-call selection
// intersected with the configured global omission. nil keeps all columns.
func (r *base[T]) readColumns(p query.Projection) []string {
	eff := p.Intersect(r.omit)
	if eff.IsZero() {
		return nil
	}
	return eff.Columns()
}

func (r *base[T]) aggregateSelects(agg AggregateSpec) ([]string, error) {
	if err := r.schema.CheckColumns(agg.Min); err != nil {
		return nil, err
	}
	if err := r.schema.CheckColumns(agg.Max); err != nil {
		return nil, err
	}
	var selects []string
	if agg.Count {
		selects = append(selects, "COUNT(*) AS count")
	}
	for _, c := range agg.Min {
		selects = append(selects, fmt.Sprintf("MIN(%s) AS min_%s", c, c))
	}
	for _, c := range agg.Max {
		selects = append(selects, fmt.Sprintf("MAX(%s) AS max_%s", c, c))
	}
	return selects, nil
}

func collectAggregates(row map[string]any, agg AggregateSpec) AggregateResult {
	res := AggregateResult{}
	if agg.Count {
		if n, ok := row["count"].(int64); ok {
			res.Count = n
		}
	}
	if len(agg.Min) > 0 {
		res.Min = make(map[string]any, len(agg.Min))
		for _, c := range agg.Min {
			res.Min[c] = row["min_"+c]
		}
	}
	if len(agg.Max) > 0 {
		res.Max = make(map[string]any, len(agg.Max))
		for _, c := range agg.Max {
			res.Max[c] = row["max_"+c]
		}
	}
	return res
}

// checkPatch validates a partial-update document: known, writable columns
// and legal enum values only.
func (r *base[T]) checkPatch(patch map[string]any) error {
	for col, v := range patch {
		kind, ok := r.schema.KindOf(col)
		if !ok {
			return &query.ValidationError{Field: col, Reason: "unknown column for table " + r.schema.Table}
		}
		if col == r.schema.PK {
			return &query.ValidationError{Field: col, Reason: "primary key is immutable"}
		}
		if col == "created_at" {
			return &query.ValidationError{Field: col, Reason: "created_at is immutable"}
		}
		if kind == query.KindEnum {
			sv := fmt.Sprintf("%v", v)
			allowed := false
			for _, a := range r.schema.Enums[col] {
				if sv == a {
					allowed = true
					break
				}
			}
			if !allowed {
				return &query.ValidationError{Field: col, Reason: fmt.Sprintf("value %v is not part of the enum", v)}
			}
		}
	}
	return nil
}

// invalidate drops cached state after a write: the table's list-query
// generation and, when known, the touched entities. Inside a transaction
// the drops are journaled instead and applied only after commit, so an
// aborted transaction leaves the cache as it was.
func (r *base[T]) invalidate(ctx context.Context, ids ...string) {
	if r.cache == nil {
		return
	}
	if r.journal != nil {
		r.journal.record(r.schema.Table, ids...)
		return
	}
	r.cache.BumpTable(ctx, r.schema.Table)
	for _, id := range ids {
		r.cache.DelEntity(ctx, r.schema.Table, id)
	}
}

// columnValue reads the struct field backing a column, dereferencing
// optional fields.
func (r *base[T]) columnValue(row *T, col string) any {
	idx, ok := r.fields[col]
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(row).Elem().Field(idx)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func (r *base[T]) pkOf(row *T) string {
	v, _ := r.columnValue(row, r.schema.PK).(string)
	return v
}

// columnFields maps schema columns onto struct field indexes once, at
// construction.
func columnFields[T any](s *query.Schema) map[string]int {
	t := reflect.TypeOf(*new(T))
	out := make(map[string]int, len(s.Columns))
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		col := toSnake(f.Name)
		if s.Has(col) {
			out[col] = i
		}
	}
	return out
}

// toSnake converts a Go field name to its column name, folding acronym
// runs the way gorm's naming strategy does (ImageURL -> image_url).
func toSnake(name string) string {
	rs := []rune(name)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(rs[i-1])
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteRune('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
