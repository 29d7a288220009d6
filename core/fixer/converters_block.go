package fixer

import (
	"strings"

	"github.com/FocuswithJustin/legacyfix/core/nbt"
	"github.com/FocuswithJustin/legacyfix/core/text"
)

// legacyBedBlock is the block id of a bed in the pre-flattening section
// layout, shifted into the upper bits as the chunk stores it.
const legacyBedBlock = 416

func (e *Engine) blockEntityConverters() []Converter {
	return []Converter{
		NewConverter(101, convertSignText),
		NewConverter(107, convertMobSpawner),
		NewConverter(704, e.convertTileEntityID),
		NewConverter(813, convertShulkerBoxBlock),
	}
}

func (e *Engine) chunkConverters() []Converter {
	return []Converter{
		NewConverter(1125, convertBedBlocks),
	}
}

func (e *Engine) optionsConverters() []Converter {
	return []Converter{
		NewConverter(505, func(doc *nbt.Document) *nbt.Document {
			doc.PutString("useVbo", "true")
			return doc
		}),
		NewConverter(816, func(doc *nbt.Document) *nbt.Document {
			if lang, ok := doc.GetString("lang"); ok {
				doc.PutString("lang", strings.ToLower(lang))
			}
			return doc
		}),
	}
}

// convertSignText upgrades the four sign lines to component JSON.
func convertSignText(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "Sign" {
		return doc
	}
	for _, key := range []string{"Text1", "Text2", "Text3", "Text4"} {
		doc.PutString(key, text.ConvertLegacy(doc.GetStringOr(key, "")))
	}
	return doc
}

// convertMobSpawner moves the spawned entity type into SpawnData and each
// weighted potential into its own Entity compound.
func convertMobSpawner(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") != "MobSpawner" {
		return doc
	}
	if entityID, ok := doc.GetString("EntityId"); ok {
		if entityID == "" {
			entityID = "Pig"
		}
		spawnData := doc.GetDocumentOrEmpty("SpawnData")
		spawnData.PutString("id", entityID)
		doc.PutDocument("SpawnData", spawnData)
		doc.Remove("EntityId")
	}

	potentials, ok := doc.GetList("SpawnPotentials")
	if !ok {
		return doc
	}
	for i := 0; i < potentials.Len(); i++ {
		potential, ok := potentials.GetDocument(i)
		if !ok {
			continue
		}
		entityType, ok := potential.GetString("Type")
		if !ok {
			continue
		}
		entity := potential.GetDocumentOrEmpty("Properties")
		entity.PutString("id", entityType)
		potential.PutDocument("Entity", entity)
		potential.Remove("Type")
		potential.Remove("Properties")
	}
	return doc
}

func (e *Engine) convertTileEntityID(doc *nbt.Document) *nbt.Document {
	if id, ok := doc.GetString("id"); ok {
		if renamed, ok := e.tables.TileEntities.Lookup(id); ok {
			doc.PutString("id", renamed)
		}
	}
	return doc
}

func convertShulkerBoxBlock(doc *nbt.Document) *nbt.Document {
	if doc.GetStringOr("id", "") == "minecraft:shulker" {
		doc.Remove("Color")
	}
	return doc
}

// convertBedBlocks adds the bed block entity that every bed block gained,
// scanning the legacy block arrays of each section.
func convertBedBlocks(doc *nbt.Document) *nbt.Document {
	level := doc.GetDocumentOrEmpty("Level")
	xPos := level.GetIntOr("xPos", 0)
	zPos := level.GetIntOr("zPos", 0)
	tileEntities := level.GetListOrEmpty("TileEntities")

	sections := level.GetListOrEmpty("Sections")
	for k := 0; k < sections.Len(); k++ {
		section, ok := sections.GetDocument(k)
		if !ok {
			continue
		}
		y := section.GetByteOr("Y", 0)
		blocks, ok := section.GetByteArray("Blocks")
		if !ok {
			continue
		}
		for l, b := range blocks {
			if (int32(b)&255)<<4 != legacyBedBlock {
				continue
			}
			bed := nbt.New()
			bed.PutString("id", "bed")
			bed.PutInt("x", int32(l&15)+(xPos<<4))
			bed.PutInt("y", int32((l>>8)&15)+(int32(y)<<4))
			bed.PutInt("z", int32((l>>4)&15)+(zPos<<4))
			tileEntities.Append(bed)
		}
	}
	if tileEntities.Len() > 0 && !level.Has("TileEntities") {
		level.PutList("TileEntities", tileEntities)
	}
	return doc
}
