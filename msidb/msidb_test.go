package msidb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"msidb/errs"
	"msidb/record"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := CreateDatabase(t.TempDir()+"/test.msi", 1252)
	require.NoError(t, err)
	return db
}

// TestCreateInsertSelect is scenario S1.
func TestCreateInsertSelect(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `phone` (`id` INT, `name` CHAR(32), `number` CHAR(32) PRIMARY KEY `id`)"))
	require.NoError(t, db.Exec("INSERT INTO `phone` (`id`,`name`,`number`) VALUES ('1','Abe','8675309')"))

	q, err := db.Prepare("SELECT * FROM `phone` WHERE `id` = 1")
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Execute(nil))

	rows, cols, err := q.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 1, rows)
	require.Equal(t, 3, cols)

	rec, err := q.GetRow(1)
	require.NoError(t, err)
	require.Equal(t, 3, rec.FieldCount())
	require.EqualValues(t, 1, rec.GetInt(1))
	require.Equal(t, "Abe", rec.GetString(2))
	require.Equal(t, "8675309", rec.GetString(3))
}

// TestStringIDReuseAfterDelete is scenario S2.
func TestStringIDReuseAfterDelete(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `t`(`k` CHAR(8) PRIMARY KEY `k`)"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`) VALUES ('foo')"))
	id, ok := db.Pool.LookupID("foo")
	require.True(t, ok)
	require.NoError(t, db.Exec("DELETE FROM `t` WHERE `k`='foo'"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`) VALUES ('foo')"))
	reused, ok := db.Pool.LookupID("foo")
	require.True(t, ok)
	require.Equal(t, id, reused)
	persistent, _ := db.Pool.RefCounts(id)
	require.Equal(t, 1, persistent)
}

// TestOrderByWithNullKey is scenario S6.
func TestOrderByWithNullKey(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `Mesa` (`A` INT, `B` INT, `C` INT PRIMARY KEY `A`)"))
	require.NoError(t, db.Exec("INSERT INTO `Mesa`(`A`,`B`,`C`) VALUES (1,2,9)"))
	require.NoError(t, db.Exec("INSERT INTO `Mesa`(`A`,`B`,`C`) VALUES (3,4,7)"))
	require.NoError(t, db.Exec("INSERT INTO `Mesa`(`A`,`B`,`C`) VALUES (5,6,8)"))

	q, err := db.Prepare("SELECT A,B FROM Mesa ORDER BY C")
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Execute(nil))

	rows, _, err := q.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 3, rows)

	want := [][2]int32{{3, 4}, {5, 6}, {1, 2}}
	for i, w := range want {
		rec, err := q.GetRow(i + 1)
		require.NoError(t, err)
		require.EqualValues(t, w[0], rec.GetInt(1))
		require.EqualValues(t, w[1], rec.GetInt(2))
	}
}

// TestJoinWithReorderAndOrderBy is scenario S3: a two-table
// join ordered by a string column, whose ORDER BY compares the raw
// fetched string-id (pool insertion order), not lexical content —
// hence the non-alphabetical expected order.
func TestJoinWithReorderAndOrderBy(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `Component` (`C` INT, `D1` CHAR(32) PRIMARY KEY `C`)"))
	require.NoError(t, db.Exec("CREATE TABLE `FeatureComponents` (`F` CHAR(32), `C2` INT PRIMARY KEY `F`,`C2`)"))

	require.NoError(t, db.Exec("INSERT INTO `Component`(`C`,`D1`) VALUES (1,'alveolar')"))
	require.NoError(t, db.Exec("INSERT INTO `Component`(`C`,`D1`) VALUES (2,'septum')"))
	require.NoError(t, db.Exec("INSERT INTO `Component`(`C`,`D1`) VALUES (3,'ramus')"))
	require.NoError(t, db.Exec("INSERT INTO `Component`(`C`,`D1`) VALUES (4,'malar')"))

	require.NoError(t, db.Exec("INSERT INTO `FeatureComponents`(`F`,`C2`) VALUES ('procerus',1)"))
	require.NoError(t, db.Exec("INSERT INTO `FeatureComponents`(`F`,`C2`) VALUES ('procerus',2)"))
	require.NoError(t, db.Exec("INSERT INTO `FeatureComponents`(`F`,`C2`) VALUES ('nasalis',2)"))
	require.NoError(t, db.Exec("INSERT INTO `FeatureComponents`(`F`,`C2`) VALUES ('nasalis',3)"))
	require.NoError(t, db.Exec("INSERT INTO `FeatureComponents`(`F`,`C2`) VALUES ('mentalis',4)"))

	q, err := db.Prepare("SELECT Component.D1, FeatureComponents.F FROM Component, FeatureComponents WHERE Component.C = FeatureComponents.C2 ORDER BY F")
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Execute(nil))

	rows, _, err := q.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 5, rows)

	want := [][2]string{
		{"alveolar", "procerus"},
		{"septum", "procerus"},
		{"septum", "nasalis"},
		{"ramus", "nasalis"},
		{"malar", "mentalis"},
	}
	for i, w := range want {
		rec, err := q.GetRow(i + 1)
		require.NoError(t, err)
		require.Equal(t, w[0], rec.GetString(1))
		require.Equal(t, w[1], rec.GetString(2))
	}
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `t`(`k` INT PRIMARY KEY `k`)"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`) VALUES (1)"))
	err := db.Exec("INSERT INTO `t`(`k`) VALUES (1)")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.FunctionFailed))
}

func TestUpdateWithWildcardAndSelectWhereUnsatisfiable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE `t`(`k` INT, `v` CHAR(8) PRIMARY KEY `k`)"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`,`v`) VALUES (1,'a')"))

	q, err := db.Prepare("UPDATE `t` SET `v` = ? WHERE `k` = ?")
	require.NoError(t, err)
	defer q.Close()
	bind := record.New(2)
	require.NoError(t, bind.SetString(1, "updated"))
	require.NoError(t, bind.SetInt(2, 1))
	require.NoError(t, q.Execute(bind))

	sel, err := db.Prepare("SELECT `v` FROM `t` WHERE `k` = 99")
	require.NoError(t, err)
	defer sel.Close()
	require.NoError(t, sel.Execute(nil))
	rows, _, err := sel.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 0, rows)

	verify, err := db.Prepare("SELECT `v` FROM `t` WHERE `k` = 1")
	require.NoError(t, err)
	defer verify.Close()
	require.NoError(t, verify.Execute(nil))
	rec, err := verify.GetRow(1)
	require.NoError(t, err)
	require.Equal(t, "updated", rec.GetString(1))
}

func TestCommitAndReopenRoundTrips(t *testing.T) {
	path := t.TempDir() + "/round.msi"
	db, err := CreateDatabase(path, 1252)
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE `t`(`k` INT, `v` CHAR(8) PRIMARY KEY `k`)"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`,`v`) VALUES (1,'a')"))
	require.NoError(t, db.Exec("INSERT INTO `t`(`k`,`v`) VALUES (2,'b')"))
	require.NoError(t, db.Commit())

	reopened, err := Open(path, ReadOnly)
	require.NoError(t, err)
	q, err := reopened.Prepare("SELECT * FROM `t`")
	require.NoError(t, err)
	defer q.Close()
	require.NoError(t, q.Execute(nil))
	rows, _, err := q.Dimensions()
	require.NoError(t, err)
	require.Equal(t, 2, rows)
}
