package delta

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"deltascan/internal/model"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser("dbo", time.Second, zap.NewNop().Sugar())
}

func TestParse_EmptyDelta(t *testing.T) {
	p := newTestParser(t)

	for _, sql := range []string{"", "   \n\t", "-- nothing here\nSELECT 1;"} {
		targets, err := p.Parse(sql)
		require.NoError(t, err)
		assert.Empty(t, targets, "expected no targets for %q", sql)
	}
}

func TestParse_CreateTableBracketed(t *testing.T) {
	p := newTestParser(t)

	sql := `CREATE TABLE [Sales].[Customers] (
		[Id] INT NOT NULL PRIMARY KEY,
		[Email] NVARCHAR(200) NULL,
		[CardNumber] DECIMAL(18,2),
		CONSTRAINT FK_Region FOREIGN KEY (Id) REFERENCES Regions(Id)
	);`

	targets, err := p.Parse(sql)
	require.NoError(t, err)

	assert.Len(t, targets, 3)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "Sales", Table: "Customers", Column: "Id"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "Sales", Table: "Customers", Column: "Email"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "Sales", Table: "Customers", Column: "CardNumber"}))
}

func TestParse_CreateTableBackticksViaAST(t *testing.T) {
	p := newTestParser(t)

	sql := "CREATE TABLE `Orders` (`OrderId` INT, `ShipAddress` VARCHAR(400));"

	targets, err := p.Parse(sql)
	require.NoError(t, err)

	assert.Len(t, targets, 2)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Orders", Column: "OrderId"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Orders", Column: "ShipAddress"}))
}

func TestParse_DefaultSchemaApplied(t *testing.T) {
	p := NewParser("app", time.Second, zap.NewNop().Sugar())

	targets, err := p.Parse(`CREATE TABLE [Payments] ([Pan] VARCHAR(32));`)
	require.NoError(t, err)

	assert.True(t, targets.Contains(model.ScanTarget{Schema: "app", Table: "Payments", Column: "Pan"}))
}

func TestParse_AlterTableAdd(t *testing.T) {
	p := newTestParser(t)

	sql := `ALTER TABLE [HR].[Employees] ADD [HomePhone] VARCHAR(24) NULL;
	ALTER TABLE Logs ADD COLUMN SourceIp VARCHAR(45);`

	targets, err := p.Parse(sql)
	require.NoError(t, err)

	assert.True(t, targets.Contains(model.ScanTarget{Schema: "HR", Table: "Employees", Column: "HomePhone"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Logs", Column: "SourceIp"}))
}

func TestParse_AlterTableAddMultiple(t *testing.T) {
	p := newTestParser(t)

	targets, err := p.Parse(`ALTER TABLE [dbo].[Users] ADD [Ssn] CHAR(11), [Dob] DATE;`)
	require.NoError(t, err)

	assert.Len(t, targets, 2)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Users", Column: "Ssn"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Users", Column: "Dob"}))
}

func TestParse_DeduplicatesTargets(t *testing.T) {
	p := newTestParser(t)

	sql := `ALTER TABLE [dbo].[T] ADD [C] INT;
	ALTER TABLE [dbo].[T] ADD [C] INT;`

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}

func TestParse_ConstraintEntriesSkipped(t *testing.T) {
	p := newTestParser(t)

	sql := `CREATE TABLE [dbo].[T] (
		[A] INT,
		PRIMARY KEY ([A]),
		UNIQUE ([A]),
		CHECK ([A] > 0)
	);`

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "T", Column: "A"}))
}

func TestParse_MixedScriptWithGoBatches(t *testing.T) {
	p := newTestParser(t)

	sql := `CREATE TABLE [dbo].[A] ([X] INT);
GO
ALTER TABLE [dbo].[B] ADD [Y] NVARCHAR(50);
GO`

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "A", Column: "X"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "B", Column: "Y"}))
}

func TestParse_SemicolonlessAlterBatches(t *testing.T) {
	p := newTestParser(t)

	// T-SQL migration scripts routinely omit statement semicolons; one
	// ALTER's column list must not absorb the statements that follow it.
	sql := "ALTER TABLE [dbo].[A] ADD [X] INT\nGO\nALTER TABLE [dbo].[B] ADD [Y] NVARCHAR(50), [Z] INT\nGO"

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "A", Column: "X"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "B", Column: "Y"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "B", Column: "Z"}))
	assert.False(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "A", Column: "Z"}),
		"column of the second statement attributed to the first table")
	assert.Len(t, targets.Sorted(), 3)
}

func TestParse_ConsecutiveAltersNoSeparator(t *testing.T) {
	p := newTestParser(t)

	// No semicolons and no GO between the statements at all.
	sql := "ALTER TABLE [dbo].[A] ADD [X] INT\nALTER TABLE [dbo].[B] ADD [Y] NVARCHAR(50)"

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "A", Column: "X"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "B", Column: "Y"}))
	assert.Len(t, targets.Sorted(), 2)
}

func TestParse_GoWithRepeatCountSeparates(t *testing.T) {
	p := newTestParser(t)

	sql := "ALTER TABLE [dbo].[A] ADD [X] INT\nGO 3\nALTER TABLE [dbo].[B] ADD [Y] INT\ngo"

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "A", Column: "X"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "B", Column: "Y"}))
	assert.Len(t, targets.Sorted(), 2)
}

func TestParse_MatchTimeoutSurfaces(t *testing.T) {
	// A deliberately expired timeout must come back as a typed failure,
	// never as a silently empty target set. regexp2's timeout clock ticks
	// coarsely by default; tighten it so the 1ns deadline is observed.
	regexp2.SetTimeoutCheckPeriod(time.Millisecond)
	defer regexp2.SetTimeoutCheckPeriod(regexp2.DefaultClockPeriod)

	p := NewParser("dbo", time.Nanosecond, zap.NewNop().Sugar())

	// One large statement, no separators, so the single match evaluation
	// is where the expired deadline gets observed.
	var b strings.Builder
	b.WriteString("ALTER TABLE [dbo].[T] ADD ")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "[C%d] NVARCHAR(50), ", i)
	}
	b.WriteString("[Last] INT")

	targets, err := p.Parse(b.String())
	require.Error(t, err)
	assert.Equal(t, model.ErrCodeParseTimeout, model.ErrCode(err))
	assert.Nil(t, targets)
}

func TestParse_CommentsStripped(t *testing.T) {
	p := newTestParser(t)

	sql := `-- adds contact details
CREATE TABLE [dbo].[Contacts] (
    -- primary key
    [Id] INT PRIMARY KEY,
    [Email] NVARCHAR(320) /* RFC 5321 upper bound */
);
GO`

	targets, err := p.Parse(sql)
	require.NoError(t, err)
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Contacts", Column: "Id"}))
	assert.True(t, targets.Contains(model.ScanTarget{Schema: "dbo", Table: "Contacts", Column: "Email"}))
}

func TestColumnsFromList_NestedParens(t *testing.T) {
	cols := columnsFromList(`[Amount] DECIMAL(18,2), [Note] NVARCHAR(100) DEFAULT ('a,b')`)
	assert.Equal(t, []string{"Amount", "Note"}, cols)
}

func TestSplitQualified(t *testing.T) {
	p := newTestParser(t)

	schema, table := p.splitQualified("[Sales].[Order Details]")
	assert.Equal(t, "Sales", schema)
	assert.Equal(t, "Order Details", table)

	schema, table = p.splitQualified("Plain")
	assert.Equal(t, "dbo", schema)
	assert.Equal(t, "Plain", table)
}
