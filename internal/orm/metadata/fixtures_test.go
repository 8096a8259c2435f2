package metadata

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

type customer struct {
	ID     int
	Name   string
	Orders []*order
}

type order struct {
	Id         int
	Total      float64
	CustomerID *int
	Customer   *customer
	rowVersion []byte
	note       string
	lines      *lineSet
}

type orderLine struct {
	Id      int
	OrderId int
	Order   *order
}

// lineSet is a set-like collection with reference semantics
type lineSet struct {
	lines []*orderLine
}

func (s *lineSet) Contains(item any) bool {
	for _, l := range s.lines {
		if l == item {
			return true
		}
	}
	return false
}

func (s *lineSet) Add(item any) bool {
	line, ok := item.(*orderLine)
	if !ok || s.Contains(line) {
		return false
	}
	s.lines = append(s.lines, line)
	return true
}

func (s *lineSet) Remove(item any) bool {
	for i, l := range s.lines {
		if l == item {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (s *lineSet) Len() int { return len(s.lines) }

// shopModel is a customer/order/line model used across tests
type shopModel struct {
	model     *Model
	customers *EntityType
	orders    *EntityType
	lines     *EntityType

	customerID   *Property
	orderID      *Property
	orderTotal   *Property
	orderCustID  *Property
	lastModified *Property
	rowVersion   *Property
	lineID       *Property
	lineOrderID  *Property

	customerOrders *ForeignKey
	orderLines     *ForeignKey
}

func newShopModel(t *testing.T, opts ...ModelOption) *shopModel {
	t.Helper()

	orderType := members.MustOf[order]()
	members.MustAddProperty(orderType, "Lines",
		func(o *order) *lineSet { return o.lines },
		func(o *order, v *lineSet) { o.lines = v })

	s := &shopModel{model: NewModel(opts...)}
	var err error

	s.customers, err = s.model.AddEntityTypeFor(members.MustOf[customer](), Explicit)
	require.NoError(t, err)
	s.orders, err = s.model.AddEntityTypeFor(orderType, Explicit)
	require.NoError(t, err)
	s.lines, err = s.model.AddEntityTypeFor(members.MustOf[orderLine](), Explicit)
	require.NoError(t, err)

	s.customerID = mustProperty(t, s.customers, "ID", nil)
	mustProperty(t, s.customers, "Name", nil)
	_, err = s.customers.SetPrimaryKey([]*Property{s.customerID}, Convention)
	require.NoError(t, err)

	s.orderID = mustProperty(t, s.orders, "Id", nil)
	s.orderTotal = mustProperty(t, s.orders, "Total", nil)
	s.orderCustID = mustProperty(t, s.orders, "CustomerID", nil)
	s.lastModified = mustProperty(t, s.orders, "LastModified", reflect.TypeOf(time.Time{}))
	s.rowVersion = mustProperty(t, s.orders, "rowVersion", nil)
	orderPK, err := s.orders.SetPrimaryKey([]*Property{s.orderID}, Convention)
	require.NoError(t, err)
	_, err = s.orderID.SetValueGenerated(ValueGeneratedOnAdd, Convention)
	require.NoError(t, err)
	_, err = s.lastModified.SetValueGenerated(ValueGeneratedOnAddOrUpdate, Explicit)
	require.NoError(t, err)
	_, err = s.rowVersion.SetIsConcurrencyToken(true, DataAnnotation)
	require.NoError(t, err)

	s.lineID = mustProperty(t, s.lines, "Id", nil)
	s.lineOrderID = mustProperty(t, s.lines, "OrderId", nil)
	_, err = s.lines.SetPrimaryKey([]*Property{s.lineID}, Convention)
	require.NoError(t, err)

	s.customerOrders, err = s.orders.AddForeignKey([]*Property{s.orderCustID}, s.customers.FindPrimaryKey(), s.customers, Convention)
	require.NoError(t, err)
	_, err = s.customerOrders.SetDependentToPrincipal("Customer", Convention)
	require.NoError(t, err)
	_, err = s.customerOrders.SetPrincipalToDependent("Orders", Convention)
	require.NoError(t, err)

	s.orderLines, err = s.lines.AddForeignKey([]*Property{s.lineOrderID}, orderPK, s.orders, Convention)
	require.NoError(t, err)
	_, err = s.orderLines.SetDependentToPrincipal("Order", Convention)
	require.NoError(t, err)
	_, err = s.orderLines.SetPrincipalToDependent("Lines", Convention)
	require.NoError(t, err)

	return s
}

func mustProperty(t *testing.T, et *EntityType, name string, typ reflect.Type) *Property {
	t.Helper()
	p, err := et.AddProperty(name, typ, Convention)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// fakeEntry is an InternalEntry over plain slices
type fakeEntry struct {
	entity         any
	shadow         []any
	original       []any
	relationship   []any
	storeGenerated map[int]any
}

func (e *fakeEntry) Entity() any { return e.entity }

func (e *fakeEntry) ReadShadowValue(i int) any { return e.shadow[i] }

func (e *fakeEntry) ReadOriginalValue(_ *Property, i int) any { return e.original[i] }

func (e *fakeEntry) ReadRelationshipSnapshotValue(_ PropertyBase, i int) any { return e.relationship[i] }

func (e *fakeEntry) ReadStoreGeneratedValue(i int) (any, bool) {
	v, ok := e.storeGenerated[i]
	return v, ok
}
