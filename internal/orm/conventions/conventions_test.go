package conventions

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/ormmeta/internal/orm/members"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

type customer struct {
	ID     int
	Name   string  `orm:"maxlength=100,required"`
	Email  *string `orm:"unique,column=email_address"`
	Secret string  `orm:"-"`
	Orders []*purchase
	notes  string
}

type purchase struct {
	PurchaseID int64
	CustomerID int
	Customer   *customer `orm:"ondelete=restrict"`
	Reference  uuid.UUID `orm:"index"`
	Placed     time.Time
	Version    []byte `orm:"concurrency,generated=on_add_or_update"`
	Lines      []*line
}

type line struct {
	PurchaseID int64 `orm:"key"`
	LineNo     int   `orm:"key"`
	Purchase   *purchase
	Note       string
}

func discoverShop(t *testing.T, opts ...metadata.ModelOption) *metadata.Model {
	t.Helper()
	model := metadata.NewModel(opts...)
	err := Discover(model,
		members.MustOf[customer](),
		members.MustOf[purchase](),
		members.MustOf[line]())
	require.NoError(t, err)
	return model
}

func propertyNames(props []*metadata.Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name()
	}
	return names
}

func TestDiscover_Properties(t *testing.T) {
	model := discoverShop(t)

	tests := []struct {
		entityType string
		want       []string
	}{
		{"customer", []string{"Email", "ID", "Name"}},
		{"purchase", []string{"CustomerID", "Placed", "PurchaseID", "Reference", "Version"}},
		{"line", []string{"LineNo", "Note", "PurchaseID"}},
	}
	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			et := model.FindEntityType(tt.entityType)
			require.NotNil(t, et)
			assert.Equal(t, metadata.Convention, et.ConfigurationSource())
			assert.Equal(t, tt.want, propertyNames(et.Properties()))
		})
	}
}

func TestDiscover_PrimaryKeys(t *testing.T) {
	model := discoverShop(t)

	customers := model.FindEntityType("customer")
	assert.Equal(t, metadata.Convention, customers.FindProperty("ID").ConfigurationSource())
	assert.Equal(t, []string{"ID"}, propertyNames(customers.FindPrimaryKey().Properties()))
	assert.Equal(t, metadata.Convention, customers.PrimaryKeyConfigurationSource())

	purchases := model.FindEntityType("purchase")
	assert.Equal(t, []string{"PurchaseID"}, propertyNames(purchases.FindPrimaryKey().Properties()))

	lines := model.FindEntityType("line")
	assert.Equal(t, []string{"PurchaseID", "LineNo"}, propertyNames(lines.FindPrimaryKey().Properties()))
	assert.Equal(t, metadata.DataAnnotation, lines.PrimaryKeyConfigurationSource())
}

func TestDiscover_ValueGeneration(t *testing.T) {
	model := discoverShop(t)

	id := model.FindEntityType("customer").FindProperty("ID")
	assert.Equal(t, metadata.ValueGeneratedOnAdd, id.ValueGenerated())
	assert.Equal(t, metadata.Convention, id.ValueGeneratedConfigurationSource())

	lineKey := model.FindEntityType("line").FindProperty("PurchaseID")
	assert.Equal(t, metadata.ValueGeneratedNever, lineKey.ValueGenerated(), "composite and foreign key members are not generated")
}

func TestDiscover_TagSettings(t *testing.T) {
	model := discoverShop(t)
	customers := model.FindEntityType("customer")
	purchases := model.FindEntityType("purchase")

	name := customers.FindProperty("Name")
	maxLength, ok := name.MaxLength()
	require.True(t, ok)
	assert.Equal(t, 100, maxLength)
	assert.Equal(t, metadata.DataAnnotation, name.FindAnnotation(metadata.AnnotationMaxLength).Source())
	assert.Equal(t, metadata.DataAnnotation, name.IsNullableConfigurationSource())

	email := customers.FindProperty("Email")
	assert.True(t, email.IsNullable())
	assert.Equal(t, "email_address", email.ColumnName())
	idx := customers.FindIndex([]*metadata.Property{email})
	require.NotNil(t, idx)
	assert.True(t, idx.IsUnique())

	source, ignored := customers.IsIgnored("Secret")
	assert.True(t, ignored)
	assert.Equal(t, metadata.DataAnnotation, source)
	assert.Nil(t, customers.FindProperty("notes"), "unexported fields are not mapped")

	version := purchases.FindProperty("Version")
	assert.True(t, version.IsConcurrencyToken())
	assert.Equal(t, metadata.ValueGeneratedOnAddOrUpdate, version.ValueGenerated())
	assert.Equal(t, "Version", version.ColumnName())

	reference := purchases.FindProperty("Reference")
	assert.Equal(t, reflect.TypeOf(uuid.UUID{}), reference.ClrType())
	assert.True(t, reference.IsIndex())
}

func TestDiscover_Relationships(t *testing.T) {
	model := discoverShop(t)
	customers := model.FindEntityType("customer")
	purchases := model.FindEntityType("purchase")
	lines := model.FindEntityType("line")

	require.Len(t, purchases.ForeignKeys(), 1)
	placedBy := purchases.ForeignKeys()[0]
	assert.Equal(t, []string{"CustomerID"}, propertyNames(placedBy.Properties()))
	assert.Same(t, customers, placedBy.PrincipalEntityType())
	assert.Equal(t, metadata.Restrict, placedBy.DeleteBehavior())
	assert.False(t, placedBy.IsUnique())

	require.NotNil(t, placedBy.DependentToPrincipal())
	assert.Equal(t, "Customer", placedBy.DependentToPrincipal().Name())
	require.NotNil(t, placedBy.PrincipalToDependent())
	assert.Equal(t, "Orders", placedBy.PrincipalToDependent().Name())
	assert.True(t, customers.FindNavigation("Orders").IsCollection())

	require.Len(t, lines.ForeignKeys(), 1)
	contains := lines.ForeignKeys()[0]
	assert.Equal(t, []string{"PurchaseID"}, propertyNames(contains.Properties()))
	assert.Equal(t, "Purchase", contains.DependentToPrincipal().Name())
	assert.Equal(t, "Lines", contains.PrincipalToDependent().Name())
	assert.True(t, contains.IsRequired())
	assert.Equal(t, metadata.Cascade, contains.DeleteBehavior())

	_, err := model.Freeze()
	assert.NoError(t, err)
}

type user struct {
	ID      int
	Profile *profile
}

type profile struct {
	ID     int
	UserID *int
	User   *user
}

func TestDiscover_OneToOne(t *testing.T) {
	model := metadata.NewModel()
	require.NoError(t, Discover(model, members.MustOf[user](), members.MustOf[profile]()))

	users := model.FindEntityType("user")
	profiles := model.FindEntityType("profile")
	assert.Empty(t, users.ForeignKeys(), "the side without a foreign key property is the principal")

	require.Len(t, profiles.ForeignKeys(), 1)
	fk := profiles.ForeignKeys()[0]
	assert.True(t, fk.IsUnique())
	assert.False(t, fk.IsRequired())
	assert.Equal(t, "Profile", fk.PrincipalToDependent().Name())
	assert.False(t, users.FindNavigation("Profile").IsCollection())
}

type gadget struct {
	SKU   string `orm:"key"`
	Label string `orm:"maxlength=lots"`
	Size  int    `orm:"colour=red"`
}

func TestDiscover_InvalidTagsAreAggregated(t *testing.T) {
	model := metadata.NewModel()
	err := Discover(model, members.MustOf[gadget]())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTag)
	assert.Contains(t, err.Error(), "gadget.Label")
	assert.Contains(t, err.Error(), "gadget.Size")

	gadgets := model.FindEntityType("gadget")
	require.NotNil(t, gadgets)
	assert.Equal(t, []string{"SKU"}, propertyNames(gadgets.FindPrimaryKey().Properties()))
	assert.Equal(t, metadata.ValueGeneratedNever, gadgets.FindProperty("SKU").ValueGenerated())
}

func TestDiscover_ExplicitConfigurationWins(t *testing.T) {
	model := metadata.NewModel()
	customers, err := model.AddEntityTypeFor(members.MustOf[customer](), metadata.Explicit)
	require.NoError(t, err)
	name, err := customers.AddProperty("Name", nil, metadata.Explicit)
	require.NoError(t, err)
	require.True(t, name.SetMaxLength(50, metadata.Explicit))
	_, err = customers.Ignore("Email", metadata.Explicit)
	require.NoError(t, err)

	require.NoError(t, Discover(model, customers.TypeInfo()))

	maxLength, _ := name.MaxLength()
	assert.Equal(t, 50, maxLength)
	assert.Equal(t, metadata.Explicit, customers.ConfigurationSource())
	assert.Nil(t, customers.FindProperty("Email"))
	assert.NotNil(t, customers.FindProperty("ID"))
}

type account struct {
	ID      int
	balance int64
}

func TestDiscover_RegisteredProperties(t *testing.T) {
	ti := members.MustOf[account]()
	members.MustAddProperty(ti, "Balance",
		func(a *account) int64 { return a.balance },
		func(a *account, v int64) { a.balance = v })

	model := metadata.NewModel()
	require.NoError(t, Discover(model, ti))

	balance := model.FindEntityType("account").FindProperty("Balance")
	require.NotNil(t, balance)
	require.NotNil(t, balance.PropertyInfo())
	require.NotNil(t, balance.FieldInfo())
	assert.Equal(t, "balance", balance.FieldInfo().Name())
}

func TestDiscover_LogsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	discoverShop(t, metadata.WithLogger(zap.New(core)))

	assert.Equal(t, 2, logs.FilterMessage("foreign key discovered").Len())
	assert.Equal(t, 2, logs.FilterMessage("primary key discovered").Len())
	discovered := logs.FilterMessage("property discovered").FilterField(zap.String("entity_type", "line"))
	assert.Equal(t, 3, discovered.Len())
}

func TestIsScalarType(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want bool
	}{
		{"int", reflect.TypeOf(0), true},
		{"pointer to string", reflect.TypeOf((*string)(nil)), true},
		{"time", reflect.TypeOf(time.Time{}), true},
		{"duration", reflect.TypeOf(time.Second), true},
		{"uuid", reflect.TypeOf(uuid.UUID{}), true},
		{"bytes", reflect.TypeOf([]byte(nil)), true},
		{"slice of strings", reflect.TypeOf([]string(nil)), false},
		{"struct pointer", reflect.TypeOf((*customer)(nil)), false},
		{"map", reflect.TypeOf(map[string]int(nil)), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsScalarType(tt.typ))
		})
	}
}
