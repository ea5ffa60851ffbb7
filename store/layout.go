package store

import "fmt"

// Container blob names. Genotype and depth blocks belong to a taxon id;
// descriptor blocks, the annotated-site set and taxon summaries belong to an
// annotation generation, so a rebuild never overwrites what a committed
// manifest still references.
const sitesTableName = "sites/table.blk"

func taxonPrefix(id uint64) string { return fmt.Sprintf("taxa/%d/", id) }

func genotypeBlockName(id uint64, block int) string {
	return fmt.Sprintf("taxa/%d/geno-%d.blk", id, block)
}

func depthBlockName(id uint64, block int) string {
	return fmt.Sprintf("taxa/%d/depth-%d.blk", id, block)
}

func descriptorPrefix(gen uint64) string { return fmt.Sprintf("sites/desc-%d-", gen) }

func descriptorBlockName(gen uint64, block int) string {
	return fmt.Sprintf("sites/desc-%d-%d.blk", gen, block)
}

func annotatedName(gen uint64) string { return fmt.Sprintf("sites/annotated-%d.blk", gen) }

func summaryName(gen uint64) string { return fmt.Sprintf("taxa/summary-%d.blk", gen) }
