package metadata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
)

type simpleOrder struct {
	Id    int
	Total float64
}

func TestProperty_NullableKeyIsRejected(t *testing.T) {
	m := NewModel()
	orders, err := m.AddEntityTypeFor(members.MustOf[simpleOrder](members.WithName("Order")), Explicit)
	require.NoError(t, err)
	id := mustProperty(t, orders, "Id", nil)
	mustProperty(t, orders, "Total", nil)
	_, err = orders.SetPrimaryKey([]*Property{id}, Explicit)
	require.NoError(t, err)

	applied, err := id.SetIsNullable(true, Explicit)
	assert.False(t, applied)
	assert.ErrorIs(t, err, ErrNullableKey)
	assert.True(t, IsConfigError(err))
	assert.False(t, id.IsNullable())
	assert.Equal(t, SourceNone, id.IsNullableConfigurationSource())
	assert.Contains(t, err.Error(), "'Id' on entity type 'Order'")
}

func TestProperty_NullabilityDefaults(t *testing.T) {
	s := newShopModel(t)

	assert.True(t, s.orderCustID.IsNullable(), "pointer foreign key defaults to nullable")
	assert.False(t, s.orderTotal.IsNullable())
	assert.False(t, s.customerID.IsNullable())

	_, err := s.orderTotal.SetIsNullable(true, Explicit)
	assert.ErrorIs(t, err, ErrCannotBeNullable)

	applied, err := s.orderCustID.SetIsNullable(false, DataAnnotation)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, s.orderCustID.IsNullable())
	assert.True(t, s.customerOrders.IsRequired())
	assert.Equal(t, Cascade, s.customerOrders.DeleteBehavior())

	applied, err = s.orderCustID.SetIsNullable(true, Convention)
	require.NoError(t, err)
	assert.False(t, applied, "convention cannot override a data annotation")
	assert.False(t, s.orderCustID.IsNullable())
}

func TestProperty_ReadOnlyFlags(t *testing.T) {
	s := newShopModel(t)

	assert.True(t, s.orderID.IsReadOnlyAfterSave(), "key properties are read-only after save")
	assert.False(t, s.orderID.IsReadOnlyBeforeSave())
	assert.True(t, s.lastModified.IsReadOnlyBeforeSave())
	assert.True(t, s.lastModified.IsReadOnlyAfterSave())
	assert.False(t, s.orderTotal.IsReadOnlyAfterSave())

	_, err := s.orderID.SetIsReadOnlyAfterSave(false, Explicit)
	assert.ErrorIs(t, err, ErrKeyReadOnly)
	assert.True(t, s.orderID.IsReadOnlyAfterSave())

	_, err = s.orderTotal.SetIsReadOnlyAfterSave(false, Explicit)
	require.NoError(t, err)
	_, err = s.orders.AddKey([]*Property{s.orderTotal}, Explicit)
	assert.ErrorIs(t, err, ErrKeyReadOnly)
	assert.False(t, s.orderTotal.IsKey(), "graph is unchanged")
}

func TestEntityType_AddKeyRejectsNullableProperty(t *testing.T) {
	s := newShopModel(t)
	_, err := s.orderCustID.SetIsNullable(true, Explicit)
	require.NoError(t, err)

	_, err = s.orders.AddKey([]*Property{s.orderCustID}, Explicit)
	assert.ErrorIs(t, err, ErrNullableKey)
	assert.Len(t, s.orders.Keys(), 1)
}

func TestEntityType_AddProperty(t *testing.T) {
	s := newShopModel(t)

	_, err := s.orders.AddProperty("Total", nil, Explicit)
	assert.ErrorIs(t, err, ErrDuplicateProperty)

	_, err = s.orders.AddProperty("Customer", nil, Explicit)
	assert.ErrorIs(t, err, ErrPropertyConflict)

	_, err = s.orders.AddProperty("Tenant", nil, Explicit)
	assert.ErrorIs(t, err, ErrPropertyTypeRequired)

	_, err = s.orders.AddProperty("note", reflect.TypeOf(0), Explicit)
	assert.ErrorIs(t, err, ErrPropertyTypeMismatch)

	note, err := s.orders.AddProperty("note", nil, Explicit)
	require.NoError(t, err)
	assert.Equal(t, members.MemberField, members.KindOf(note.FieldInfo()))
	assert.Nil(t, note.PropertyInfo())
	assert.False(t, note.IsShadowProperty())

	assert.True(t, s.lastModified.IsShadowProperty())
	assert.Equal(t, KindScalar, s.lastModified.Kind())

	var names []string
	for _, p := range s.orders.Properties() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"CustomerID", "Id", "LastModified", "Total", "note", "rowVersion"}, names)
}

func TestEntityType_IgnoredMembers(t *testing.T) {
	s := newShopModel(t)

	ignored, err := s.orders.Ignore("Total", DataAnnotation)
	require.NoError(t, err)
	assert.True(t, ignored)
	assert.Nil(t, s.orders.FindProperty("Total"))

	p, err := s.orders.AddProperty("Total", nil, Convention)
	require.NoError(t, err)
	assert.Nil(t, p, "convention cannot re-add a member ignored by a data annotation")

	p, err = s.orders.AddProperty("Total", nil, Explicit)
	require.NoError(t, err)
	require.NotNil(t, p)
	_, isIgnored := s.orders.IsIgnored("Total")
	assert.False(t, isIgnored)

	_, err = s.orders.Ignore("Id", Explicit)
	assert.ErrorIs(t, err, ErrPropertyInUse)

	ignored, err = s.orders.Ignore("Customer", Explicit)
	require.NoError(t, err)
	assert.True(t, ignored)
	assert.Nil(t, s.customerOrders.DependentToPrincipal())
	assert.Nil(t, s.orders.FindNavigation("Customer"))
}

func TestEntityType_RemoveProtectsGraph(t *testing.T) {
	s := newShopModel(t)

	err := s.orders.RemoveProperty(s.orderCustID)
	assert.ErrorIs(t, err, ErrPropertyInUse)
	assert.Same(t, s.orderCustID, s.orders.FindProperty("CustomerID"))

	err = s.customers.RemoveKey(s.customers.FindPrimaryKey())
	assert.ErrorIs(t, err, ErrKeyInUse)
	assert.NotNil(t, s.customers.FindPrimaryKey())

	err = s.model.RemoveEntityType(s.customers)
	assert.ErrorIs(t, err, ErrEntityTypeInUse)

	require.NoError(t, s.orders.RemoveForeignKey(s.customerOrders))
	assert.Nil(t, s.customers.FindNavigation("Orders"))
	assert.Empty(t, s.customers.ReferencingForeignKeys())
	assert.False(t, s.orderCustID.IsForeignKey())

	require.NoError(t, s.orders.RemoveProperty(s.orderCustID))
	require.NoError(t, s.model.RemoveEntityType(s.customers))
	assert.Nil(t, s.model.FindEntityType("customer"))
	assert.Nil(t, s.model.FindEntityTypeFor(reflect.TypeOf(&customer{})))
}

func TestEntityType_AddForeignKeyValidation(t *testing.T) {
	s := newShopModel(t)
	orderPK := s.orders.FindPrimaryKey()

	t.Run("count mismatch", func(t *testing.T) {
		_, err := s.lines.AddForeignKey([]*Property{s.lineOrderID, s.lineID}, orderPK, s.orders, Explicit)
		assert.ErrorIs(t, err, ErrForeignKeyCountMismatch)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := s.orders.AddForeignKey([]*Property{s.orderTotal}, s.customers.FindPrimaryKey(), s.customers, Explicit)
		assert.ErrorIs(t, err, ErrForeignKeyTypeMismatch)
	})

	t.Run("principal key on another type", func(t *testing.T) {
		_, err := s.lines.AddForeignKey([]*Property{s.lineOrderID}, orderPK, s.customers, Explicit)
		assert.ErrorIs(t, err, ErrPrincipalKeyMismatch)
	})

	t.Run("property of another type", func(t *testing.T) {
		_, err := s.lines.AddForeignKey([]*Property{s.orderID}, orderPK, s.orders, Explicit)
		assert.ErrorIs(t, err, ErrPropertyWrongEntityType)
	})

	t.Run("empty and duplicated lists", func(t *testing.T) {
		_, err := s.lines.AddForeignKey(nil, orderPK, s.orders, Explicit)
		assert.ErrorIs(t, err, ErrEmptyPropertyList)
		_, err = s.lines.AddIndex([]*Property{s.lineID, s.lineID}, Explicit)
		assert.ErrorIs(t, err, ErrDuplicatePropertyInList)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := s.lines.AddForeignKey([]*Property{s.lineOrderID}, orderPK, s.orders, Explicit)
		assert.ErrorIs(t, err, ErrDuplicateForeignKey)
	})

	t.Run("other model", func(t *testing.T) {
		other := newShopModel(t)
		_, err := s.lines.AddForeignKey([]*Property{s.lineOrderID}, other.orders.FindPrimaryKey(), other.orders, Explicit)
		assert.ErrorIs(t, err, ErrEntityTypeModelMismatch)
	})

	assert.Len(t, s.lines.ForeignKeys(), 1, "failed calls leave the graph unchanged")
}

func TestForeignKey_ResolveOtherEntityType(t *testing.T) {
	s := newShopModel(t)

	other, err := s.orderLines.ResolveOtherEntityType(s.lines)
	require.NoError(t, err)
	assert.Same(t, s.orders, other)

	other, err = s.orderLines.ResolveOtherEntityType(s.orders)
	require.NoError(t, err)
	assert.Same(t, s.lines, other)

	_, err = s.orderLines.ResolveOtherEntityType(s.customers)
	assert.ErrorIs(t, err, ErrEntityTypeNotInRelationship)
}

func TestNavigation_Shape(t *testing.T) {
	s := newShopModel(t)

	lines := s.orders.FindNavigation("Lines")
	require.NotNil(t, lines)
	assert.True(t, lines.IsCollection())
	assert.False(t, lines.IsDependentToPrincipal())
	assert.Same(t, s.lines, lines.TargetEntityType())
	assert.Same(t, s.lines.FindNavigation("Order"), lines.Inverse())
	assert.Equal(t, KindNavigation, lines.Kind())
	assert.Equal(t, "lines", lines.FieldInfo().Name())

	order := s.lines.FindNavigation("Order")
	assert.False(t, order.IsCollection())
	assert.Same(t, s.orders, order.TargetEntityType())

	_, err := s.orderLines.SetIsUnique(true, Explicit)
	assert.ErrorIs(t, err, ErrNavigationTypeMismatch, "a *lineSet cannot hold a single line")
	assert.False(t, s.orderLines.IsUnique())

	_, err = s.customerOrders.SetDependentToPrincipal("Total", Explicit)
	assert.ErrorIs(t, err, ErrPropertyConflict)

	_, err = s.orderLines.SetPrincipalToDependent("Customer", Explicit)
	assert.ErrorIs(t, err, ErrDuplicateNavigation)

	_, err = s.customerOrders.SetPrincipalToDependent("Missing", Explicit)
	assert.ErrorIs(t, err, ErrNoClrNavigation)

	_, err = s.customerOrders.SetPrincipalToDependent("Name", Explicit)
	assert.ErrorIs(t, err, ErrPropertyConflict)

	nav, err := s.customerOrders.SetPrincipalToDependent("Orders", DataAnnotation)
	require.NoError(t, err)
	assert.Equal(t, DataAnnotation, nav.ConfigurationSource())
}

func TestEntityType_PrimaryKeyPrecedence(t *testing.T) {
	s := newShopModel(t)

	key, err := s.orders.SetPrimaryKey([]*Property{s.orderTotal}, Convention)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, s.orderTotal.IsPrimaryKey())
	assert.False(t, s.orderID.IsPrimaryKey())
	assert.True(t, s.orderID.IsKey(), "the previous primary key stays as an alternate key")

	_, err = s.orders.SetPrimaryKey([]*Property{s.orderID}, Explicit)
	require.NoError(t, err)
	key, err = s.orders.SetPrimaryKey([]*Property{s.orderTotal}, DataAnnotation)
	require.NoError(t, err)
	assert.Nil(t, key)
	assert.True(t, s.orderID.IsPrimaryKey())
	assert.Equal(t, Explicit, s.orders.PrimaryKeyConfigurationSource())
}

func TestComparers(t *testing.T) {
	s := newShopModel(t)

	assert.Equal(t, 0, ComparePropertyLists([]*Property{s.orderID}, []*Property{s.orderID}))
	assert.Negative(t, ComparePropertyLists([]*Property{s.orderID}, []*Property{s.orderID, s.orderTotal}))
	assert.Negative(t, ComparePropertyLists([]*Property{s.orderCustID}, []*Property{s.orderTotal}))

	assert.Negative(t, CompareKeys(s.customers.FindPrimaryKey(), s.orders.FindPrimaryKey()))
	assert.Negative(t, CompareForeignKeys(s.customerOrders, s.orderLines))
	assert.Positive(t, CompareForeignKeys(s.orderLines, s.customerOrders))
	assert.Equal(t, 0, CompareForeignKeys(s.orderLines, s.orderLines))

	first, err := s.orders.AddIndex([]*Property{s.orderTotal}, Explicit)
	require.NoError(t, err)
	second, err := s.orders.AddIndex([]*Property{s.orderCustID}, Explicit)
	require.NoError(t, err)
	assert.Positive(t, CompareIndexes(first, second))
	assert.Equal(t, []*Index{second, first}, s.orders.Indexes())

	_, err = s.orders.AddIndex([]*Property{s.orderTotal}, Explicit)
	assert.ErrorIs(t, err, ErrDuplicateIndex)
}

func TestModel_AddEntityType(t *testing.T) {
	m := NewModel()
	ti := members.MustOf[customer]()

	_, err := m.AddEntityTypeFor(ti, Explicit)
	require.NoError(t, err)
	_, err = m.AddEntityTypeFor(ti, Explicit)
	assert.ErrorIs(t, err, ErrDuplicateEntityType)
	_, err = m.AddEntityTypeFor(members.MustOf[customer](members.WithName("Client")), Explicit)
	assert.ErrorIs(t, err, ErrDuplicateClrType)

	audit, err := m.AddEntityType("Audit", Convention)
	require.NoError(t, err)
	assert.False(t, audit.HasClrType())
	assert.Nil(t, audit.ClrType())

	var names []string
	for _, et := range m.EntityTypes() {
		names = append(names, et.Name())
	}
	assert.Equal(t, []string{"Audit", "customer"}, names)
	assert.Same(t, m.FindEntityType("customer"), m.FindEntityTypeFor(reflect.TypeOf(customer{})))
}

func TestModel_FreezeValidatesAndLocks(t *testing.T) {
	m := NewModel()
	_, err := m.AddEntityType("A", Explicit)
	require.NoError(t, err)
	_, err = m.AddEntityType("B", Explicit)
	require.NoError(t, err)

	_, err = m.Freeze()
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrMissingPrimaryKey)
	}
	assert.False(t, m.IsFrozen())

	s := newShopModel(t)
	frozen, err := s.model.Freeze()
	require.NoError(t, err)
	assert.True(t, s.model.IsFrozen())
	assert.Same(t, s.orders, frozen.FindEntityType("order"))
	assert.Len(t, frozen.EntityTypes(), 3)

	_, err = s.orders.AddProperty("note", nil, Explicit)
	assert.ErrorIs(t, err, ErrModelFrozen)
	_, err = s.orderTotal.SetIsConcurrencyToken(true, Explicit)
	assert.ErrorIs(t, err, ErrModelFrozen)
	_, err = s.model.AddEntityType("Late", Explicit)
	assert.ErrorIs(t, err, ErrModelFrozen)
	assert.ErrorIs(t, s.orders.RemoveProperty(s.orderTotal), ErrModelFrozen)
}

func TestModel_DebugView(t *testing.T) {
	s := newShopModel(t)
	s.customers.FindProperty("Name").SetMaxLength(100, DataAnnotation)

	view := s.model.DebugView()
	assert.Contains(t, view, "EntityType: order\n")
	assert.Contains(t, view, "LastModified (time.Time) Shadow")
	assert.Contains(t, view, "MaxLength(100)")
	assert.Contains(t, view, "order {CustomerID} -> customer {ID}")
	assert.Contains(t, view, "Lines (*metadata.lineSet) Collection ToDependent orderLine Inverse: Order")
	assert.Equal(t, view, s.model.DebugView(), "debug view is deterministic")
}
